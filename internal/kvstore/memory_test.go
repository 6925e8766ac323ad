package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrementAndTTL(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	clock := time.Now().UTC()
	store.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrementAndGet(ctx, "counter", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	value, ok, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), value)

	// Advance past the TTL set on first increment.
	clock = clock.Add(time.Minute + time.Second)
	_, ok, err = store.Get(ctx, "counter")
	require.NoError(t, err)
	require.False(t, ok)

	// A fresh increment starts a new counter.
	got, err := store.IncrementAndGet(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}

func TestMemoryStorePutGetDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "lock", 1, 0))
	value, ok, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), value)

	require.NoError(t, store.Delete(ctx, "lock"))
	_, ok, err = store.Get(ctx, "lock")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "missing"))
}
