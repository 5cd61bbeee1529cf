package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload every record still awaiting sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			rec, err := env.reconciler()
			if err != nil {
				return err
			}

			res, err := rec.PushUnsynced(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %d record(s), %d failed.\n", res.Uploaded, res.Failed)
			for _, re := range res.Errors {
				fmt.Fprintf(out, "  %s: %v\n", re.RecordID, re.Err)
			}
			return nil
		},
	}
}
