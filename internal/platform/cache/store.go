package cache

import (
	"context"
	"time"
)

// Store is a TTL cache for sets of permission slugs. Implementations must be
// safe for concurrent readers and writers; Delete must take effect before it
// returns so a mutation can guarantee no later read observes a stale set.
type Store interface {
	// Get returns the cached set and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]string, bool)
	// Set stores the set under key for the given TTL.
	Set(ctx context.Context, key string, values []string, ttl time.Duration) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
