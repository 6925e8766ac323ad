package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-member-portal/internal/kvstore"
)

// failingStore simulates an unreachable counter store.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("store down")
}
func (failingStore) Put(context.Context, string, int64, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) IncrementAndGet(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error {
	return errors.New("store down")
}

func TestRateLimiterDeniesBeyondCap(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	limiter := NewRateLimiter(store, map[string]RateLimitRule{
		"auth:login": {Max: 3, Window: time.Minute},
	})
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	limiter.SetClock(func() time.Time { return base })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision := limiter.Allow(ctx, "auth:login", "192.0.2.1")
		require.True(t, decision.Allowed, "request %d", i+1)
		require.Equal(t, 2-i, decision.Remaining)
	}

	// The (N+1)-th call inside the same window is denied.
	decision := limiter.Allow(ctx, "auth:login", "192.0.2.1")
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Remaining)
	require.Equal(t, time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC), decision.ResetAt)

	// A different client identity has its own window.
	require.True(t, limiter.Allow(ctx, "auth:login", "198.51.100.2").Allowed)
}

func TestRateLimiterNewWindowResets(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	limiter := NewRateLimiter(store, map[string]RateLimitRule{
		"auth:login": {Max: 1, Window: time.Minute},
	})
	base := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)
	limiter.SetClock(func() time.Time { return base })
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)
	require.False(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)

	// First call in the next window is admitted again.
	base = base.Add(time.Second)
	require.True(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)
}

func TestRateLimiterSubSecondWindowRoundsUp(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	limiter := NewRateLimiter(store, map[string]RateLimitRule{
		"auth:login": {Max: 2, Window: 500 * time.Millisecond},
	})
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	limiter.SetClock(func() time.Time { return base })
	ctx := context.Background()

	// A window shorter than a second is counted against a one-second
	// bucket instead of dividing by zero.
	require.True(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)
	require.True(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)

	decision := limiter.Allow(ctx, "auth:login", "c1")
	require.False(t, decision.Allowed)
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 31, 0, time.UTC), decision.ResetAt)
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(failingStore{}, map[string]RateLimitRule{
		"auth:login": {Max: 1, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(ctx, "auth:login", "c1").Allowed)
	}
}

func TestRateLimiterDefaultRule(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(kvstore.NewMemoryStore(), nil)
	rule := limiter.Rule("anything")
	require.Equal(t, 100, rule.Max)
	require.Equal(t, time.Minute, rule.Window)

	decision := limiter.Allow(context.Background(), "anything", "c1")
	require.True(t, decision.Allowed)
	require.Equal(t, 99, decision.Remaining)
}
