package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/blobcache"
)

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or shrink the artwork cache",
	}

	cmd.AddCommand(
		newCacheStatsCommand(opts),
		newCacheEvictCommand(opts),
	)

	return cmd
}

func newCacheStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and total size against the configured bound",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			cache := blobcache.New(env.store, env.cfg.CacheMaxBytes, env.log)
			stats, err := cache.Stats(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d entries, %d of %d bytes used\n",
				stats.Count, stats.TotalBytes, env.cfg.CacheMaxBytes)
			return nil
		},
	}
}

func newCacheEvictCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evict [owner-id]",
		Short: "Drop one owner's entries, or shrink the cache to its bound",
		Long: `With an owner id, remove that owner's cached artwork (both variants).
Without one, evict least-recently-used entries until the cache fits the
configured size bound again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			cache := blobcache.New(env.store, env.cfg.CacheMaxBytes, env.log)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				if err := cache.EvictFor(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Evicted cached artwork for %s.\n", args[0])
				return nil
			}

			if err := cache.EnforceBound(ctx, env.cfg.CacheMaxBytes); err != nil {
				return err
			}
			stats, err := cache.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cache now holds %d entries, %d bytes.\n", stats.Count, stats.TotalBytes)
			return nil
		},
	}

	return cmd
}
