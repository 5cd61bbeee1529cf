// Package common defines shared constants and sentinel errors used across
// client and server layers of FlockSync. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"net"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote store errors. ErrTransient marks failures worth retrying
	// later (network down, timeouts, 5xx). ErrRemoteRejected marks
	// payloads the remote refused; retrying the same payload is useless.
	ErrTransient      = errors.New("transient remote failure")
	ErrRemoteRejected = errors.New("rejected by remote")

	// Sync flow control. A trigger that arrives while a push cycle is
	// running is dropped, not queued.
	ErrSyncInProgress = errors.New("sync already in progress")

	// Local store errors. A record that fails to decode is reported with
	// ErrCorruptRecord and skipped; it never aborts a read of the rest.
	ErrCorruptRecord = errors.New("corrupt record")

	// Auth errors (invalid or malformed token).
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Provider errors. Returned by calendar backends that cannot perform
	// the requested operation (Apple has no remote delete).
	ErrUnsupported = errors.New("operation not supported by provider")
)

// IsTransient reports whether err describes a failure that may succeed on
// a later attempt. Wrapped ErrTransient values and network timeouts both
// qualify.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
