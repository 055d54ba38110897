// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"strings"

	"universalmcp/cli/internal/config"
	"universalmcp/cli/internal/dsn"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// dbinfoCmd shows which user database the postgres transport would use.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the user database connection string",
	Long: `The dbinfo command displays the DSN the postgres transport uses, with the
password masked. The DSN is taken from the UMCP_DATABASE_URL environment
variable, then postgres.dsn in the config file, then the OS keychain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)

		// Load has already folded the environment variable into the config.
		raw, source := a.cfg.Postgres.DSN, "config file"
		if env := strings.TrimSpace(os.Getenv(config.EnvDatabaseURL)); env != "" && env == strings.TrimSpace(raw) {
			source = config.EnvDatabaseURL + " environment variable"
		}
		if strings.TrimSpace(raw) == "" {
			if err := a.openKeychain(); err != nil {
				return err
			}
			raw, _ = a.keys.LoadDBDSN()
			source = "OS keychain"
		}
		if strings.TrimSpace(raw) == "" {
			pterm.Println("⚠️  No database connection configured")
			pterm.Println("   Please run: universal-mcp connect")
			return nil
		}

		masked := "(unparseable DSN)"
		if info, err := dsn.Parse(raw); err == nil {
			masked = info.Redacted()
		}

		pterm.Println("Using DSN from " + source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("User Database")).
			WithPadding(1).
			Println(masked)
		pterm.Println()
		pterm.Println("To update this connection, run: universal-mcp connect")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}
