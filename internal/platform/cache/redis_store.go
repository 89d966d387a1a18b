package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance, so invalidations
// made by one replica are seen by all of them.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a RedisStore. The prefix namespaces keys so several
// services can share one Redis database.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get fetches and decodes the cached set. Transport or decode failures are
// reported as a miss; the caller recomputes from the source of truth.
func (s *RedisStore) Get(ctx context.Context, key string) ([]string, bool) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var values []string
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, false
	}
	return values, true
}

// Set encodes and stores the set with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, values []string, ttl time.Duration) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), payload, ttl).Err()
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

var _ Store = (*RedisStore)(nil)
