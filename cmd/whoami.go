// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// whoamiCmd prints the signed-in user's profile.
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"me"},
	Short:   "Show the signed-in account",
	Long: `The whoami command shows the profile of the signed-in account: name, email,
role, department, permissions and last login. The stored session is validated
with the credential service first, so an expired session shows as logged out.`,
	Annotations: map[string]string{needsSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		snap := a.sess.Snapshot()
		if !snap.IsAuthenticated {
			printNotLoggedIn()
			return exitError{code: 1}
		}
		u := snap.User

		rows := [][]string{
			{"Name", orDash(u.Name)},
			{"Email", orDash(u.Email)},
			{"Role", string(u.Role)},
			{"Department", orDash(u.Department)},
			{"User ID", u.ID},
		}
		if u.LastLogin != nil {
			rows = append(rows, []string{"Last login", u.LastLogin.Local().Format(time.RFC1123)})
		}
		perms := "-"
		switch {
		case u.IsAdmin():
			perms = "all (admin)"
		case len(u.Permissions) > 0:
			perms = strings.Join(u.Permissions, ", ")
		}
		rows = append(rows, []string{"Permissions", perms})

		var b strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&b, "%s %s\n", pterm.Bold.Sprintf("%-12s", r[0]), r[1])
		}
		pterm.DefaultBox.WithTitle("👤 Current user").Println(strings.TrimRight(b.String(), "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func printNotLoggedIn() {
	fmt.Println("🔒 You're not logged in yet!")
	fmt.Println("   Run 'universal-mcp login' to get started.")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
