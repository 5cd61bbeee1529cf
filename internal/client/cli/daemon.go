package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/realtime"
	"github.com/dmitrijs2005/flocksync/internal/client/reminders"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

// reconnectDelay paces redials after the change feed drops or fails to dial.
const reconnectDelay = 5 * time.Second

// NewDaemonCommand creates the daemon command: the long-running process that
// keeps the local store synchronized and delivers booked reminders.
func NewDaemonCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background sync and reminder process",
		Long: `Run until interrupted: push unsynced records on the configured interval,
follow the realtime change feed (reconnecting when it drops), and deliver
reminders booked with "flocksync remind set". Logs go to the configured
log file, or to stdout as JSON when none is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := opts.cfg
			level := logging.ParseLevel(cfg.LogLevel)
			var log logging.Logger
			if cfg.LogFile != "" {
				log = logging.NewRotating(cfg.LogFile, level)
			} else {
				log = logging.NewJSON(os.Stdout, level)
			}

			env, err := openEnvWith(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer env.Close()

			sess, err := env.requireSession()
			if err != nil {
				return err
			}

			log.Info(ctx, "daemon started",
				"server", cfg.ServerAddr, "sync_interval", cfg.AutoSyncInterval)

			rec, err := env.reconciler()
			if err != nil {
				return err
			}

			// Flush whatever accumulated while the daemon was down. A failure
			// here is not fatal: the periodic sync retries on its own.
			if res, err := rec.PushUnsynced(ctx); err != nil {
				log.Warn(ctx, "initial push failed", "error", err)
			} else if res.Uploaded > 0 || res.Failed > 0 {
				log.Info(ctx, "initial push done", "uploaded", res.Uploaded, "failed", res.Failed)
			}

			stopSync := rec.StartAutoSync(ctx, cfg.AutoSyncInterval)
			defer stopSync()

			notifier := reminders.NewTimerNotifier(func(payload string) {
				log.Info(ctx, "reminder fired", "payload", payload)
			})
			sched := reminders.NewScheduler(env.store, notifier, log)
			if n, err := sched.Rearm(ctx); err != nil {
				log.Warn(ctx, "rearming reminders failed", "error", err)
			} else if n > 0 {
				log.Info(ctx, "reminders rearmed", "count", n)
			}

			listener := realtime.NewListener(cfg.WebsocketAddr, sess.Token, log)
			filter := remote.Filter{ChurchID: sess.ChurchID, PageSize: cfg.PageSize}

			for {
				sub, err := listener.Subscribe(ctx, filter)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Warn(ctx, "change feed dial failed", "error", err, "retry_in", reconnectDelay)
					if !sleepCtx(ctx, reconnectDelay) {
						return nil
					}
					continue
				}

				for records := range sub.Updates() {
					log.Info(ctx, "change feed delivered records", "count", len(records))
				}
				sub.Unsubscribe()

				if ctx.Err() != nil {
					return nil
				}
				if err := sub.Err(); err != nil {
					log.Warn(ctx, "change feed dropped", "error", err, "retry_in", reconnectDelay)
				}
				if !sleepCtx(ctx, reconnectDelay) {
					return nil
				}
			}
		},
	}
}

// sleepCtx waits out d and reports false when the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
