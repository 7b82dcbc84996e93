// Package store defines the TTL key-value contract consumed by the OTP
// session machine and the revocation ledger, plus its Redis implementation.
//
// Every record written through this package carries its own expiry; nothing
// is ever compacted explicitly. Callers distinguish "key absent" from
// "backend down" via ErrNotFound and ErrUnavailable.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that the requested key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable reports that the backing store could not be reached.
	// Callers must fail closed on this error.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// TTL is the minimal expiring key-value surface the auth core depends on.
// Implementations must be safe for concurrent use.
type TTL interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value at key with the given expiry. ttl must be positive.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Update rewrites the value at key. A positive ttl restarts the expiry;
	// ttl <= 0 preserves whatever TTL the key already carries.
	Update(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// GetDel atomically reads and removes key, or returns ErrNotFound.
	// This is the consume-once primitive for single-use credentials.
	GetDel(ctx context.Context, key string) (string, error)

	// Incr atomically increments the counter at key and returns the new
	// value. The first increment creates the key and starts the window;
	// later increments never extend it.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
