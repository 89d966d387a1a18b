package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store with an in-process TTL cache. It backs
// single-replica deployments and tests; invalidations are only visible to
// the local process.
type MemoryStore struct {
	inner *gocache.Cache
}

// NewMemoryStore builds a MemoryStore with the given default TTL.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{inner: gocache.New(defaultTTL, 2*defaultTTL)}
}

// Get returns the cached set if present and fresh.
func (s *MemoryStore) Get(_ context.Context, key string) ([]string, bool) {
	raw, ok := s.inner.Get(key)
	if !ok {
		return nil, false
	}
	values, ok := raw.([]string)
	return values, ok
}

// Set stores a copy of the set so callers cannot mutate cached state.
func (s *MemoryStore) Set(_ context.Context, key string, values []string, ttl time.Duration) error {
	copied := make([]string, len(values))
	copy(copied, values)
	s.inner.Set(key, copied, ttl)
	return nil
}

// Delete removes the key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.inner.Delete(key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
