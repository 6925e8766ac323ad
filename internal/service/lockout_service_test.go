package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-member-portal/internal/kvstore"
)

func TestLockoutThreshold(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	guard := NewLockoutGuard(store, 5, time.Hour, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		guard.RecordFailure(ctx, "user@example.com")
		require.False(t, guard.CheckLocked(ctx, "user@example.com"), "after %d failures", i+1)
	}

	guard.RecordFailure(ctx, "user@example.com")
	require.True(t, guard.CheckLocked(ctx, "user@example.com"))

	// Locked accounts stop accumulating failures.
	guard.RecordFailure(ctx, "user@example.com")
	count, ok, err := store.Get(ctx, "lockout:fail:user@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), count)
}

func TestLockoutSelfExpires(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return clock })
	guard := NewLockoutGuard(store, 5, time.Hour, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		guard.RecordFailure(ctx, "user@example.com")
	}
	require.True(t, guard.CheckLocked(ctx, "user@example.com"))

	// The marker's TTL is the lock duration; after it lapses the account
	// is evaluated normally again with no sweeper involved.
	clock = clock.Add(15*time.Minute + time.Second)
	require.False(t, guard.CheckLocked(ctx, "user@example.com"))
}

func TestLockoutIdentityNormalized(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	guard := NewLockoutGuard(store, 2, time.Hour, 15*time.Minute)
	ctx := context.Background()

	guard.RecordFailure(ctx, "User@Example.com ")
	guard.RecordFailure(ctx, "user@example.com")
	require.True(t, guard.CheckLocked(ctx, "USER@EXAMPLE.COM"))
}

func TestLockoutClear(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	guard := NewLockoutGuard(store, 2, time.Hour, 15*time.Minute)
	ctx := context.Background()

	guard.RecordFailure(ctx, "user@example.com")
	guard.RecordFailure(ctx, "user@example.com")
	require.True(t, guard.CheckLocked(ctx, "user@example.com"))

	guard.Clear(ctx, "user@example.com")
	require.False(t, guard.CheckLocked(ctx, "user@example.com"))

	// The counter is gone too: one new failure does not re-lock.
	guard.RecordFailure(ctx, "user@example.com")
	require.False(t, guard.CheckLocked(ctx, "user@example.com"))
}

func TestLockoutFailsOpenOnStoreError(t *testing.T) {
	t.Parallel()

	guard := NewLockoutGuard(failingStore{}, 2, time.Hour, 15*time.Minute)
	ctx := context.Background()

	require.False(t, guard.CheckLocked(ctx, "user@example.com"))
	// Recording against a dead store is a no-op, not a panic.
	guard.RecordFailure(ctx, "user@example.com")
	guard.Clear(ctx, "user@example.com")
}
