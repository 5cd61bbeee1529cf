package localstore

import "context"

// Store is the durable key/value + blob primitive behind the client engine.
// Implementations must keep every mutation atomic: after a crash a key holds
// either its previous or its new value.
type Store interface {
	// GetString returns the value stored under key. ok is false when the
	// key is absent; that is not an error.
	GetString(ctx context.Context, key string) (value string, ok bool, err error)

	// SetString stores value under key, overwriting any previous value.
	SetString(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error

	// RemoveMany deletes all given keys in one transaction.
	RemoveMany(ctx context.Context, keys []string) error

	// Keys lists all stored keys beginning with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// WriteBlob stores an opaque payload under a name in the blob area.
	WriteBlob(ctx context.Context, name string, data []byte) error

	// ReadBlob returns the payload stored under name, or an error wrapping
	// common.ErrNotFound when absent.
	ReadBlob(ctx context.Context, name string) ([]byte, error)

	// DeleteBlob removes the payload. Deleting an absent blob is a no-op.
	DeleteBlob(ctx context.Context, name string) error

	// Close releases the underlying resources.
	Close() error
}
