// Package config holds the client runtime settings. Resolution is layered:
// built-in defaults, then an optional JSON file, then command-line flags.
// The flag layer itself lives in the CLI (cobra); this package only applies
// the values the CLI hands over.
package config

import "time"

// Config holds runtime settings for the FlockSync client.
//
// Fields:
//   - ServerAddr: base URL of the backend HTTP API.
//   - WebsocketAddr: URL of the realtime change feed endpoint.
//   - DatabasePath / BlobDir: where the local database and blob area live.
//   - PageSize: remote feed page size.
//   - CacheMaxBytes: upper bound for the artwork cache.
//   - AutoSyncInterval: how often the daemon pushes unsynced records.
//   - LogLevel: slog level name ("debug", "info", "warn", "error").
//   - LogFile: when set, the daemon logs to this rotated file instead of stdout.
type Config struct {
	ServerAddr       string
	WebsocketAddr    string
	DatabasePath     string
	BlobDir          string
	PageSize         int
	CacheMaxBytes    int64
	AutoSyncInterval time.Duration
	LogLevel         string
	LogFile          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.WebsocketAddr = "ws://127.0.0.1:8080/ws/changes"
	c.DatabasePath = "flocksync.db"
	c.BlobDir = "blobs"
	c.PageSize = 50
	c.CacheMaxBytes = 100 << 20
	c.AutoSyncInterval = 30 * time.Second
	c.LogLevel = "info"
	c.LogFile = ""
}

// Load constructs a Config from defaults overlaid with the JSON file at
// jsonPath. An empty path means no file is consulted.
func Load(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if jsonPath != "" {
		if err := cfg.ApplyFile(jsonPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
