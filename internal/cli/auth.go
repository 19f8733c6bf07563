package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

var (
	authEmail    string
	authPassword string
	authConfirm  string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the signed-in account",
	Long: `Create an account, sign in and out, and show who is signed in.

Passwords can be passed with --password or typed on stdin, one per line.
The sign-up form reads the password and then its confirmation.`,
}

var authSignUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Identity == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		in := bufio.NewReader(cmd.InOrStdin())
		password := authPassword
		if password == "" {
			password = readSecret(in)
		}
		confirm := authConfirm
		if confirm == "" {
			if authPassword != "" {
				confirm = authPassword
			} else {
				confirm = readSecret(in)
			}
		}

		id, err := Identity.SignUp(cmd.Context(), models.Credentials{
			Email:    authEmail,
			Password: password,
			Confirm:  confirm,
		})
		if err != nil {
			return explain("signing up", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed up and signed in as %s\n", id.Email)
		return nil
	},
}

var authSignInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in to an existing account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Identity == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		password := authPassword
		if password == "" {
			password = readSecret(bufio.NewReader(cmd.InOrStdin()))
		}

		id, err := Identity.SignIn(cmd.Context(), models.Credentials{
			Email:    authEmail,
			Password: password,
		})
		if err != nil {
			return explain("signing in", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Signed in as %s\n", id.Email)
		if TaskStore != nil {
			if err := TaskStore.LastError(); err != nil {
				fmt.Fprintf(out, "Warning: tasks could not be loaded: %v\n", err)
			} else {
				fmt.Fprintf(out, "%d task(s) loaded\n", len(TaskStore.Tasks()))
			}
		}
		return nil
	},
}

var authSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out; tasks stay on disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Identity == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		id, wasSignedIn := Identity.Current()
		if err := Identity.SignOut(cmd.Context()); err != nil {
			return explain("signing out", err)
		}
		if wasSignedIn {
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", id.Email)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
		}
		return nil
	},
}

var authWhoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Identity == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		id, ok := Identity.Current()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id.Email, id.ID)
		return nil
	},
}

// readSecret reads one line from r, without its trailing newline.
func readSecret(r *bufio.Reader) string {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

func init() {
	for _, c := range []*cobra.Command{authSignUpCmd, authSignInCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email address")
		c.Flags().StringVar(&authPassword, "password", "", "Account password (read from stdin when omitted)")
		_ = c.MarkFlagRequired("email")
	}
	authSignUpCmd.Flags().StringVar(&authConfirm, "confirm", "", "Password confirmation (defaults to --password)")

	authCmd.AddCommand(authSignUpCmd, authSignInCmd, authSignOutCmd, authWhoAmICmd)
	rootCmd.AddCommand(authCmd)
}
