package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/metrics"
)

// counterGrace keeps a window key alive slightly past its window so a
// request racing the boundary never reads a vanished counter.
const counterGrace = 60 * time.Second

// RateLimitRule is the per-endpoint budget for the fixed-window limiter.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

// Decision is the admission result for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per (endpoint, client) in fixed windows
// against the shared counter store. The count is best-effort: a
// read-increment race may admit a handful of requests beyond the cap,
// and an unreachable store fails open rather than blocking traffic.
type RateLimiter struct {
	store    kvstore.Store
	rules    map[string]RateLimitRule
	fallback RateLimitRule
	now      func() time.Time
}

func NewRateLimiter(store kvstore.Store, rules map[string]RateLimitRule) *RateLimiter {
	if rules == nil {
		rules = map[string]RateLimitRule{}
	}
	return &RateLimiter{
		store:    store,
		rules:    rules,
		fallback: RateLimitRule{Max: 100, Window: time.Minute},
		now:      time.Now,
	}
}

// SetClock overrides the limiter clock. Only intended for tests.
func (l *RateLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// Rule returns the budget configured for an endpoint, or the
// conservative default.
func (l *RateLimiter) Rule(endpoint string) RateLimitRule {
	if rule, ok := l.rules[endpoint]; ok && rule.Max > 0 && rule.Window > 0 {
		return rule
	}
	return l.fallback
}

// Allow admits or rejects one request for (endpoint, client).
func (l *RateLimiter) Allow(ctx context.Context, endpoint string, client string) Decision {
	rule := l.Rule(endpoint)

	now := l.now().UTC()
	windowSeconds := int64(rule.Window / time.Second)
	if windowSeconds < 1 {
		// Buckets are keyed by unix second, so anything shorter rounds
		// up to a one-second window.
		windowSeconds = 1
	}
	windowStart := now.Unix() / windowSeconds * windowSeconds
	resetAt := time.Unix(windowStart+windowSeconds, 0).UTC()

	if l.store == nil {
		return Decision{Allowed: true, Remaining: rule.Max, ResetAt: resetAt}
	}

	key := fmt.Sprintf("rl:%s:%s:%d", endpoint, client, windowStart)
	count, err := l.store.IncrementAndGet(ctx, key, rule.Window+counterGrace)
	if err != nil {
		// Fail open: an unreachable counter store must never take the
		// whole portal down with it.
		slog.Warn("rate limit counter unavailable, admitting request", "endpoint", endpoint, "error", err)
		return Decision{Allowed: true, Remaining: rule.Max, ResetAt: resetAt}
	}

	if count > int64(rule.Max) {
		metrics.ObserveRateLimited(endpoint)
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	return Decision{Allowed: true, Remaining: rule.Max - int(count), ResetAt: resetAt}
}
