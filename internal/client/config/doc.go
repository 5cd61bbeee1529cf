// Package config loads runtime configuration for the FlockSync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see (*Config).ApplyFile).
//
// Load applies both in that order. Command-line flags are owned by the
// CLI layer, which overlays any flag the user set explicitly on top of
// the loaded Config, so the effective order is defaults, then file, then
// flags.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_addr": "http://127.0.0.1:8080",
//	  "websocket_addr": "ws://127.0.0.1:8080/ws/changes",
//	  "database_path": "flocksync.db",
//	  "blob_dir": "blobs",
//	  "page_size": 50,
//	  "cache_max_bytes": 104857600,
//	  "auto_sync_interval": "30s",
//	  "log_level": "info",
//	  "log_file": ""
//	}
//
// Member identity (user id, name, church, token) is not configuration; it
// is the session the CLI persists in the local store at login.
//
// This package does not read environment variables; use the JSON file or
// the CLI flags to configure values.
package config
