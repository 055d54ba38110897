// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"universalmcp/cli/internal/logging"

	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd prints the session snapshot, for scripts and troubleshooting.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session state",
	Long: `The status command prints the current session state after restoring any stored
session. With --json the full snapshot is printed; the session token is always
masked.`,
	Annotations: map[string]string{needsSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		snap := a.sess.Snapshot()
		snap.Token = logging.MaskToken(snap.Token)

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Printf("State:       %s\n", snap.State)
		fmt.Printf("Transport:   %s\n", a.cfg.Backend.Transport)
		if snap.User != nil {
			fmt.Printf("User:        %s (%s)\n", snap.User.Email, snap.User.Role)
		}
		if snap.Token != "" {
			fmt.Printf("Token:       %s\n", snap.Token)
		}
		if snap.Error != "" {
			fmt.Printf("Error:       %s\n", snap.Error)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
