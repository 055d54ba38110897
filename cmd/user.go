// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"universalmcp/cli/internal/backend"
	"universalmcp/cli/internal/logging"
	"universalmcp/cli/internal/session"
	"universalmcp/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	userName        string
	userRole        string
	userPermissions []string
	userDepartment  string
	userAvatarURL   string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts in the user database",
}

// userAddCmd provisions an account for the postgres transport.
var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create an account in the user database",
	Long: `The user add command creates an account that can sign in with the postgres
transport. The password is prompted for without echo and stored as a bcrypt hash.
The user and session tables are created first when missing.

Example:
  universal-mcp --transport postgres user add ada@example.com --role developer \
    --permission servers.read --permission servers.write`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{needsBackend: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ok := appFrom(cmd).api.(*backend.Postgres)
		if !ok {
			return errors.New("user add needs the postgres transport; pass --transport postgres")
		}
		role, err := session.ParseRole(userRole)
		if err != nil {
			return err
		}

		p := terminal.Stdio()
		password, err := p.Password("Password for " + args[0] + ": ")
		if err != nil {
			return err
		}
		if p.IsInteractive() {
			confirm, err := p.Password("Repeat password: ")
			if err != nil {
				return err
			}
			if confirm != password {
				return errors.New("passwords do not match")
			}
		}

		ctx := cmd.Context()
		if err := db.EnsureSchema(ctx); err != nil {
			pterm.Error.Println(logging.PresentError("prepare schema", err))
			return exitError{code: 1}
		}
		u, err := db.AddUser(ctx, backend.NewUser{
			Email:       args[0],
			Name:        userName,
			Role:        role,
			Permissions: userPermissions,
			Department:  userDepartment,
			AvatarURL:   userAvatarURL,
			Password:    password,
		})
		if err != nil {
			pterm.Error.Println(logging.PresentError("add user", err))
			return exitError{code: 1}
		}

		fmt.Printf("✅ Created %s (%s)\n", u.Email, u.Role)
		if len(u.Permissions) > 0 {
			fmt.Printf("   Permissions: %s\n", strings.Join(u.Permissions, ", "))
		}
		fmt.Printf("   ID: %s\n", u.ID)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userRole, "role", string(session.RoleViewer), "Role: admin, manager, developer or viewer")
	userAddCmd.Flags().StringSliceVar(&userPermissions, "permission", nil, "Permission to grant (repeatable)")
	userAddCmd.Flags().StringVar(&userDepartment, "department", "", "Department")
	userAddCmd.Flags().StringVar(&userAvatarURL, "avatar-url", "", "Avatar image URL")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
