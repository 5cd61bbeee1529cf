package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/realtime"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the live change feed of the congregation",
		Long: `Subscribe to the realtime change feed and print the full current
matching set on every push. Each message supersedes the previous one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.Close()

			sess, err := env.requireSession()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener := realtime.NewListener(env.cfg.WebsocketAddr, sess.Token, env.log)
			sub, err := listener.Subscribe(ctx, remote.Filter{
				ChurchID: sess.ChurchID,
				PageSize: env.cfg.PageSize,
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Watching the change feed. Press Ctrl-C to stop.")

			for {
				select {
				case <-ctx.Done():
					return nil
				case set, ok := <-sub.Updates():
					if !ok {
						return sub.Err()
					}
					fmt.Fprintf(out, "-- %d record(s) at %s --\n",
						len(set), time.Now().Format(time.TimeOnly))
					for _, r := range set {
						printRecordLine(out, r)
					}
				}
			}
		},
	}
}
