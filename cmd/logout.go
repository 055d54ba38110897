// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/logging"
	"universalmcp/cli/internal/session"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logoutAll bool

// logoutCmd ends the session and removes the stored session token.
// It only needs the keychain: the credential service is contacted afterwards,
// best-effort, to revoke the token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session token",
	Long: `The logout command ends the current session. The session token is removed
from the OS keychain and revoked on the credential service (best-effort; an
offline or misconfigured service does not prevent local logout).

With --all the saved database connection string is removed as well.`,
	Annotations: map[string]string{needsKeychain: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()
		tokens := a.keys.Tokens()

		token, readErr := tokens.Get()
		var creds session.CredentialService = offlineCredentials{}
		if err := a.openBackend(ctx); err != nil {
			a.log.Debug("credential service unavailable, logging out locally",
				zap.String("reason", logging.Mask(err.Error())))
		} else {
			creds = a.api
		}

		a.sess = session.NewManager(creds, tokens, session.WithLogger(a.log.Named("session")))
		a.sess.Logout()
		if readErr != nil {
			// The manager saw no token; remove whatever may still be stored.
			if err := tokens.Clear(); err != nil {
				pterm.Warning.Println("Could not remove the stored session token: " + errs.MessageOf(err))
			}
		}

		if token != "" && a.api != nil {
			rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := a.api.Revoke(rctx, token); err != nil {
				a.log.Debug("remote token revocation failed", zap.String("reason", logging.Mask(err.Error())))
			}
			cancel()
		}

		if logoutAll {
			if err := a.keys.ClearAll(); err != nil {
				pterm.Warning.Println("Could not clear all stored credentials: " + errs.MessageOf(err))
			}
		}

		if token == "" {
			fmt.Println("You were not logged in.")
			return nil
		}
		fmt.Println("✅ Logged out. Your session token has been removed.")
		return nil
	},
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Also remove the saved database connection string")
	rootCmd.AddCommand(logoutCmd)
}

// offlineCredentials stands in for a credential service that could not be
// built. Logout never verifies anything, so every call reports unavailability.
type offlineCredentials struct{}

func (offlineCredentials) VerifyCredentials(context.Context, string, string) (session.User, string, error) {
	return session.User{}, "", errs.ErrServiceUnavailable
}

func (offlineCredentials) ValidateToken(context.Context, string) (session.User, error) {
	return session.User{}, errs.ErrServiceUnavailable
}
