package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerAddr       string         `json:"server_addr"`
	WebsocketAddr    string         `json:"websocket_addr"`
	DatabasePath     string         `json:"database_path"`
	BlobDir          string         `json:"blob_dir"`
	PageSize         int            `json:"page_size"`
	CacheMaxBytes    int64          `json:"cache_max_bytes"`
	AutoSyncInterval timex.Duration `json:"auto_sync_interval"`
	LogLevel         string         `json:"log_level"`
	LogFile          string         `json:"log_file"`
}

// ApplyFile overlays c with values loaded from the JSON file at path.
// Fields absent from the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if jc.ServerAddr != "" {
		c.ServerAddr = jc.ServerAddr
	}
	if jc.WebsocketAddr != "" {
		c.WebsocketAddr = jc.WebsocketAddr
	}
	if jc.DatabasePath != "" {
		c.DatabasePath = jc.DatabasePath
	}
	if jc.BlobDir != "" {
		c.BlobDir = jc.BlobDir
	}
	if jc.PageSize > 0 {
		c.PageSize = jc.PageSize
	}
	if jc.CacheMaxBytes > 0 {
		c.CacheMaxBytes = jc.CacheMaxBytes
	}
	if jc.AutoSyncInterval.Duration > 0 {
		c.AutoSyncInterval = time.Duration(jc.AutoSyncInterval.Duration)
	}
	if jc.LogLevel != "" {
		c.LogLevel = jc.LogLevel
	}
	if jc.LogFile != "" {
		c.LogFile = jc.LogFile
	}
	return nil
}
