package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/syncer"
	"github.com/dmitrijs2005/flocksync/internal/common"
)

// NewEngageCommand creates the engage command.
func NewEngageCommand(opts *RootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "engage <record-id>",
		Short: "Record an engagement (\"prayed\", \"amen\") against a shared record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			remoteID, err := resolveRemoteID(ctx, env, rec, args[0])
			if err != nil {
				return err
			}

			id, err := rec.AddEngagement(ctx, remoteID, kind)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Engagement %s recorded.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "prayed", "engagement kind")

	return cmd
}

// resolveRemoteID maps the id shown by "list" (the client-assigned one) to
// the server-assigned id engagements are booked against. Local records carry
// it once pushed; records authored elsewhere are looked up in the feed.
func resolveRemoteID(ctx context.Context, env *env, rec *syncer.Reconciler, id string) (string, error) {
	local, err := env.records.Get(ctx, id)
	switch {
	case err == nil:
		if local.RemoteID == "" {
			return "", fmt.Errorf("record %s has not been uploaded yet; run \"flocksync sync\" first", id)
		}
		return local.RemoteID, nil
	case !errors.Is(err, common.ErrNotFound):
		return "", err
	}

	feed, err := rec.Pull(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range feed {
		if r.ID == id && r.RemoteID != "" {
			return r.RemoteID, nil
		}
	}
	return "", fmt.Errorf("record %s: %w", id, common.ErrNotFound)
}
