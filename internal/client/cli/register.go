package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/common"
)

// NewRegisterCommand creates the register command.
func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var email, name, churchID string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
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
			if name == "" {
				if name, err = GetSimpleText(reader, "Display name", out); err != nil {
					return err
				}
			}
			if churchID == "" {
				if churchID, err = GetSimpleText(reader, "Church id", out); err != nil {
					return err
				}
			}

			password, err := GetPassword(out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			session, err := env.remote.Register(ctx, email, string(password), name, churchID)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := env.saveSession(ctx, session); err != nil {
				return err
			}

			fmt.Fprintf(out, "Signed in as %s (%s)\n", session.Name, session.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name (prompted when omitted)")
	cmd.Flags().StringVar(&churchID, "church", "", "congregation id (prompted when omitted)")

	return cmd
}
