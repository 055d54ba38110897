// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for universal-mcp.
// It implements the session commands (login, logout, whoami, can, status),
// account provisioning for the database-backed credential service, and a gRPC
// server that exposes that service, using the Cobra CLI framework with pterm
// output.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"universalmcp/cli/internal/backend"
	"universalmcp/cli/internal/config"
	"universalmcp/cli/internal/keychain"
	"universalmcp/cli/internal/logging"
	"universalmcp/cli/internal/session"
	"universalmcp/cli/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showVersion bool
	configPath  string
	verbose     bool
	transport   string
	baseURL     string
)

// Command annotations controlling what PersistentPreRunE wires up.
const (
	// needsSession commands get a restored session manager.
	needsSession = "needs-session"
	// needsBackend commands get a credential service client without a session.
	needsBackend = "needs-backend"
	// needsKeychain commands get the keychain only; anything else is opened on demand.
	needsKeychain = "needs-keychain"
)

// app holds the dependencies shared by a single command invocation.
type app struct {
	cfg  config.Config
	log  *zap.Logger
	keys *keychain.Manager
	api  backend.API
	sess *session.Manager

	closeOnce sync.Once
}

type appKey struct{}

// appFrom returns the dependencies setup attached to cmd's context, or nil
// when setup did not run.
func appFrom(cmd *cobra.Command) *app {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// exitError ends the process with code without printing anything more.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "universal-mcp",
	Short: "Universal MCP dashboard CLI",
	Long: `universal-mcp signs you in to the Universal MCP dashboard and answers
permission questions for the signed-in account. The session survives restarts:
the session token is kept in the OS keychain and validated on every start.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { appFrom(cmd).teardown() },
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return printVersion(cmd)
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ran, err := rootCmd.ExecuteContextC(ctx)
	stop()
	appFrom(ran).teardown()

	if err == nil {
		return
	}
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	pterm.Error.Println(logging.PresentError("", err))
	os.Exit(1)
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and credential service version")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/universal-mcp/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "Credential service transport: http, grpc or postgres")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the HTTP credential service")
}

// setup loads config and builds the dependencies the command asked for.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if transport != "" {
		cfg.Backend.Transport = strings.ToLower(transport)
	}
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, log: log}
	ctx := context.WithValue(cmd.Context(), appKey{}, a)
	cmd.SetContext(ctx)
	backend.UserAgent = "universal-mcp-cli/" + Version

	if cmd.Annotations[needsKeychain] == "true" {
		return a.openKeychain()
	}
	wantSession := cmd.Annotations[needsSession] == "true"
	if !wantSession && cmd.Annotations[needsBackend] != "true" {
		return nil
	}
	if err := a.openBackend(ctx); err != nil {
		return err
	}
	if !wantSession {
		return nil
	}

	a.sess = session.NewManager(a.api, a.keys.Tokens(),
		session.WithLogger(log.Named("session")),
		session.WithLoginTimeout(cfg.Session.LoginTimeout),
	)
	a.sess.Restore(ctx)
	return nil
}

// openBackend opens the keychain and connects to the configured credential service.
func (a *app) openBackend(ctx context.Context) error {
	if a.api != nil {
		return nil
	}
	if err := a.openKeychain(); err != nil {
		return err
	}
	// The keychain DSN only matters for the postgres transport.
	dsnFromKeychain, _ := a.keys.LoadDBDSN()
	api, err := backend.New(ctx, a.cfg, backend.Options{Logger: a.log, PostgresDSN: dsnFromKeychain})
	if err != nil {
		return err
	}
	a.api = api
	return nil
}

func (a *app) openKeychain() error {
	if a.keys != nil {
		return nil
	}
	fileDir := a.cfg.Keyring.FileDir
	if fileDir == "" {
		dir, err := xdg.StateDir()
		if err != nil {
			return fmt.Errorf("resolve state directory: %w", err)
		}
		fileDir = filepath.Join(dir, "keyring")
	}
	keys, err := keychain.Open(keychain.Options{
		Backends:     a.cfg.Keyring.Backends,
		FileDir:      fileDir,
		FilePassword: os.Getenv(config.EnvKeyringPass),
	})
	if err != nil {
		pterm.Error.Println("Secure storage is not available on this system.")
		pterm.Println("  Set keyring.backends to [file] in your config and export " + config.EnvKeyringPass + " to use an encrypted file instead.")
		return exitError{code: 1}
	}
	a.keys = keys
	return nil
}

// teardown releases everything setup created. It is safe to call twice and
// on a nil app.
func (a *app) teardown() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.sess != nil {
			a.sess.Close()
		}
		if a.api != nil {
			_ = a.api.Close()
		}
		_ = a.log.Sync()
	})
}
