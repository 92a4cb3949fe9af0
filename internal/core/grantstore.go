package core

import (
	"context"
	"time"
)

// GrantStore holds short-lived protocol state: authorization codes, refresh
// grants and revocation markers. Values are opaque bytes.
//
// Every operation is bounded by the implementation's own timeout. A timeout or
// backend failure is reported as an error, never as a missing key.
type GrantStore interface {
	// Put stores value under key for ttl, replacing any existing value.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutIfAbsent stores value only when key does not exist. It reports
	// whether the value was written.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get returns the value under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Take atomically reads and removes key. Of several concurrent callers
	// at most one receives the value; the rest get ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)

	Health(ctx context.Context) error
	Close() error
}
