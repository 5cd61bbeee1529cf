// Package logging defines the structured-logging interface shared by the
// client engine and the server, plus slog-backed implementations of it.
package logging

import "context"

// Logger is a context-aware structured logger. Variadic args are
// alternating key/value pairs:
//
//	log.Warn(ctx, "push failed", "record_id", id, "err", err)
//
// Components receive a Logger at construction and never log through a
// package-level default, so tests can pass NewNop().
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that stamps the given key/value pairs
	// on every message.
	With(args ...any) Logger
}
