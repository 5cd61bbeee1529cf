package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show records: local ones merged with the congregation feed",
		Long: `Show the merged view: every local record united with what others
shared. When the server is unreachable the view silently degrades to the
local records alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()

			var view []models.Record
			if localOnly || env.session == nil {
				view, err = env.records.All(ctx)
				if err != nil {
					return err
				}
				sort.Slice(view, func(i, j int) bool {
					if view[i].CreatedAt != view[j].CreatedAt {
						return view[i].CreatedAt > view[j].CreatedAt
					}
					return view[i].ID < view[j].ID
				})
			} else {
				rec, err := env.reconciler()
				if err != nil {
					return err
				}
				view, err = rec.MergedView(ctx)
				if err != nil {
					return err
				}
			}

			if len(view) == 0 {
				fmt.Fprintln(out, "No records.")
				return nil
			}
			for _, r := range view {
				printRecordLine(out, r)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "skip the remote feed, show local records only")

	return cmd
}

func printRecordLine(out io.Writer, r models.Record) {
	marker := ""
	if !r.Synced {
		marker = "  (unsynced)"
	}
	count := ""
	if r.EngagementCount > 0 {
		count = fmt.Sprintf("  [%d]", r.EngagementCount)
	}
	fmt.Fprintf(out, "%s  %-17s %-8s %s%s%s\n",
		r.ID, r.Kind, r.Visibility, r.Summary(), count, marker)
}
