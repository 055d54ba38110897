// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	"universalmcp/cli/internal/config"
	"universalmcp/cli/internal/httperrors"
	"universalmcp/cli/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and credential service version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints the CLI version and, when reachable, the version reported
// by the configured credential service.
func printVersion(cmd *cobra.Command) error {
	fmt.Printf("universal-mcp %s\n", Version)

	a := appFrom(cmd)
	ctx := cmd.Context()
	if err := a.openBackend(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	v, err := a.api.GetVersion(ctx)
	if err != nil {
		fmt.Printf("credential service (%s): unavailable\n", a.cfg.Backend.Transport)
		a.log.Debug("version lookup failed", zap.String("reason", logging.Mask(err.Error())))
		if a.cfg.Backend.Transport == config.TransportHTTP {
			httperrors.Print(err, httperrors.ExtractHostFromURL(a.cfg.Backend.BaseURL))
		}
		return nil
	}
	fmt.Printf("credential service (%s): %s\n", a.cfg.Backend.Transport, v)
	return nil
}
