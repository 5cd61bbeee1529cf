package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/common"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Long: `Sign in against the backend. The session is persisted in the local
store, so later commands (and offline record creation) reuse it without
talking to the server again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if email == "" {
				if email, err = GetSimpleText(reader, "Email", out); err != nil {
					return err
				}
			}

			password, err := GetPassword(out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			session, err := env.remote.Login(ctx, email, string(password))
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := env.saveSession(ctx, session); err != nil {
				return err
			}

			fmt.Fprintf(out, "Signed in as %s (%s)\n", session.Name, session.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when omitted)")

	return cmd
}
