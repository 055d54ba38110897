// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"universalmcp/cli/internal/session"
	"universalmcp/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

// loginCmd signs in with email and password and persists the session token.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"signin"},
	Short:   "Sign in with email and password",
	Long: `The login command asks for your dashboard email and password and verifies
them with the credential service. On success the session token is stored in the
OS keychain so later commands stay signed in.

If a valid session already exists, login does nothing. Use --password-stdin to
pipe the password in scripts.`,
	Annotations: map[string]string{needsSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess := appFrom(cmd).sess

		if snap := sess.Snapshot(); snap.IsAuthenticated {
			fmt.Printf("Already logged in as %s\n", snap.User.Email)
			return nil
		}

		email, password, err := readCredentials(terminal.Stdio())
		if err != nil {
			return err
		}

		done, err := sess.Login(ctx, email, password)
		if err != nil {
			return err
		}
		stop := startInlineSpinner(os.Stderr, "Signing in", spinnerFrames, 100*time.Millisecond)
		<-done
		stop()

		snap := sess.Snapshot()
		switch snap.State {
		case session.KindAuthenticated:
			name := snap.User.Name
			if name == "" {
				name = snap.User.Email
			}
			pterm.Success.Printf("%s, %s! You're logged in.\n", greeting(time.Now().Hour()), name)
			return nil
		case session.KindAuthFailed:
			pterm.Error.Println(snap.Error)
			return exitError{code: 1}
		default:
			return fmt.Errorf("login did not complete")
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	rootCmd.AddCommand(loginCmd)
}

// readCredentials collects the email and password from flags or prompts.
// Prompts are cleared from the screen once answered.
func readCredentials(p *terminal.Prompter) (string, string, error) {
	interactive := p.IsInteractive()
	if !interactive && !loginPasswordStdin {
		return "", "", errors.New("stdin is not a terminal; pass --email and --password-stdin")
	}

	email := loginEmail
	if email == "" {
		if !interactive {
			return "", "", errors.New("--email is required with --password-stdin")
		}
		const label = "Email: "
		v, err := p.Line(label)
		if err != nil {
			return "", "", err
		}
		terminal.ClearPreviousLines(len(label) + len(v))
		email = v
	}

	label := "Password: "
	if loginPasswordStdin {
		label = ""
	}
	password, err := p.Password(label)
	if err != nil {
		if errors.Is(err, terminal.ErrNoInput) {
			return "", "", errors.New("no password given")
		}
		return "", "", err
	}
	if interactive {
		terminal.ClearPreviousLines(len(label))
	}
	return email, password, nil
}
