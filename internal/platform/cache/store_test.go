package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "gatehouse"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, ok := store.Get(ctx, "role:viewer")
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "role:viewer", []string{"orders.view"}, time.Minute))

	values, ok := store.Get(ctx, "role:viewer")
	require.True(t, ok)
	require.Equal(t, []string{"orders.view"}, values)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "role:admin", []string{"orders.delete"}, time.Minute))
	require.NoError(t, store.Delete(ctx, "role:admin"))

	_, ok := store.Get(ctx, "role:admin")
	require.False(t, ok)

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete(ctx, "role:admin"))
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "role:viewer", []string{"orders.view"}, time.Second))
	mr.FastForward(2 * time.Second)

	_, ok := store.Get(ctx, "role:viewer")
	require.False(t, ok)
}

func TestRedisStoreCorruptEntryIsAMiss(t *testing.T) {
	store, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set("gatehouse:role:viewer", "not-json"))

	_, ok := store.Get(context.Background(), "role:viewer")
	require.False(t, ok)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "teamPerms:u1:o1", []string{"reports.view"}, time.Minute))

	values, ok := store.Get(ctx, "teamPerms:u1:o1")
	require.True(t, ok)
	require.Equal(t, []string{"reports.view"}, values)

	require.NoError(t, store.Delete(ctx, "teamPerms:u1:o1"))
	_, ok = store.Get(ctx, "teamPerms:u1:o1")
	require.False(t, ok)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	source := []string{"orders.view"}
	require.NoError(t, store.Set(ctx, "role:viewer", source, time.Minute))
	source[0] = "mutated"

	values, ok := store.Get(ctx, "role:viewer")
	require.True(t, ok)
	require.Equal(t, []string{"orders.view"}, values)
}
