// Package kvstore abstracts the shared counter store used for rate-limit
// windows, lockout state, and elevation bookkeeping mirrors. Counters are
// best-effort: callers degrade on error instead of blocking traffic.
package kvstore

import (
	"context"
	"time"
)

// Store is a key-level TTL counter store.
type Store interface {
	// Get returns the current value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Put writes a value with a TTL. A non-positive TTL keeps the key
	// until overwritten.
	Put(ctx context.Context, key string, value int64, ttl time.Duration) error
	// IncrementAndGet atomically increments a counter, creating it with
	// the given TTL when absent, and returns the post-increment value.
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
