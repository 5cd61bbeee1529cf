package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/config"
)

// RootOptions holds the global flags shared by every command. Zero values
// mean "not set"; the resolved configuration lives in cfg after the
// persistent pre-run.
type RootOptions struct {
	ConfigFile    string
	ServerAddr    string
	WebsocketAddr string
	DatabasePath  string
	BlobDir       string
	PageSize      int
	CacheMaxBytes int64
	SyncInterval  int
	LogLevel      string

	cfg *config.Config
}

// NewRootCommand creates the root command for the FlockSync client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flocksync",
		Short: "FlockSync church community client",
		Long: `FlockSync keeps a member's notes, prayer requests and verse annotations
available offline and synchronized with the congregation's shared feed.

Records are created locally first; "sync" uploads them, "watch" follows the
live change feed, and "daemon" runs both continuously.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolveConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&opts.ServerAddr, "server-addr", "a", "", "base URL of the backend HTTP API")
	pf.StringVarP(&opts.WebsocketAddr, "ws-addr", "w", "", "realtime change feed endpoint")
	pf.StringVarP(&opts.DatabasePath, "db", "d", "", "local database path")
	pf.StringVarP(&opts.BlobDir, "blob-dir", "b", "", "blob area directory")
	pf.IntVarP(&opts.PageSize, "page-size", "p", 0, "remote feed page size")
	pf.Int64VarP(&opts.CacheMaxBytes, "cache-max-bytes", "m", 0, "artwork cache bound in bytes")
	pf.IntVarP(&opts.SyncInterval, "sync-interval", "i", 0, "auto-sync interval in seconds")
	pf.StringVarP(&opts.LogLevel, "log-level", "l", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		NewRegisterCommand(opts),
		NewLoginCommand(opts),
		NewAddCommand(opts),
		NewListCommand(opts),
		NewSyncCommand(opts),
		NewEngageCommand(opts),
		NewWatchCommand(opts),
		NewCalendarCommand(opts),
		NewRemindCommand(opts),
		NewCacheCommand(opts),
		NewDaemonCommand(opts),
	)

	return cmd
}

// resolveConfig layers the effective configuration: defaults, then the JSON
// file, then every flag the user set explicitly.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server-addr") {
		cfg.ServerAddr = o.ServerAddr
	}
	if flags.Changed("ws-addr") {
		cfg.WebsocketAddr = o.WebsocketAddr
	}
	if flags.Changed("db") {
		cfg.DatabasePath = o.DatabasePath
	}
	if flags.Changed("blob-dir") {
		cfg.BlobDir = o.BlobDir
	}
	if flags.Changed("page-size") {
		cfg.PageSize = o.PageSize
	}
	if flags.Changed("cache-max-bytes") {
		cfg.CacheMaxBytes = o.CacheMaxBytes
	}
	if flags.Changed("sync-interval") {
		cfg.AutoSyncInterval = time.Duration(o.SyncInterval) * time.Second
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}

	o.cfg = cfg
	return nil
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
