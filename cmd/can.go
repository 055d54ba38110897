// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var canQuiet bool

// canCmd answers whether the signed-in user holds a permission.
// The exit status is 0 when granted and 1 otherwise, so it can gate scripts.
var canCmd = &cobra.Command{
	Use:   "can <permission>...",
	Short: "Check whether the signed-in user holds permissions",
	Long: `The can command checks each permission against the signed-in user. Admins hold
every permission. The command exits with status 0 only when all permissions are
granted, and with status 1 otherwise or when nobody is logged in.

Example:
  universal-mcp can servers.write && deploy.sh`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{needsSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := appFrom(cmd).sess
		if !sess.Snapshot().IsAuthenticated {
			if !canQuiet {
				printNotLoggedIn()
			}
			return exitError{code: 1}
		}

		allowed := true
		for _, p := range args {
			ok := sess.HasPermission(p)
			allowed = allowed && ok
			if canQuiet {
				continue
			}
			if ok {
				fmt.Printf("✅ %s\n", p)
			} else {
				fmt.Printf("❌ %s\n", p)
			}
		}
		if !allowed {
			return exitError{code: 1}
		}
		return nil
	},
}

func init() {
	canCmd.Flags().BoolVarP(&canQuiet, "quiet", "q", false, "Print nothing; report only through the exit status")
	rootCmd.AddCommand(canCmd)
}
