package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nocturne-journal/nocturne/internal/identity"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and enable remote sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			username := args[0]

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			salt, err := app.Backend.GetSalt(ctx, username)
			if err != nil {
				return fmt.Errorf("fetching salt: %w", err)
			}

			verifier := identity.DeriveVerifier(password, salt)
			pair, err := app.Backend.Login(ctx, username, verifier)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			// Installing the tokens flips the identity, which triggers
			// hydrate + drain via the session change listener.
			if err := app.Session.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
			return nil
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and return to guest mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

// readPassword prompts on stderr and reads without echo.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(int(syscall.Stdin))
}
