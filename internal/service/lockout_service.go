package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/metrics"
)

// LockoutGuard tracks failed authentication attempts per account and
// temporarily denies accounts that cross the threshold. Both the failure
// counter and the lock marker self-expire via store TTLs, so no sweeper
// is needed and a crashed process never leaves an account locked forever.
type LockoutGuard struct {
	store      kvstore.Store
	threshold  int
	counterTTL time.Duration
	lockTTL    time.Duration
}

func NewLockoutGuard(store kvstore.Store, threshold int, counterTTL time.Duration, lockTTL time.Duration) *LockoutGuard {
	return &LockoutGuard{
		store:      store,
		threshold:  threshold,
		counterTTL: counterTTL,
		lockTTL:    lockTTL,
	}
}

func failureKey(identity string) string { return "lockout:fail:" + normalizeIdentity(identity) }
func lockKey(identity string) string    { return "lockout:lock:" + normalizeIdentity(identity) }

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// CheckLocked reports whether the account is currently denied. Only the
// lock marker is consulted; its TTL is the lock duration, so expiry is
// the store's job. A store error fails open so an outage cannot lock
// every account out of the portal.
func (g *LockoutGuard) CheckLocked(ctx context.Context, identity string) bool {
	_, locked, err := g.store.Get(ctx, lockKey(identity))
	if err != nil {
		slog.Warn("lockout check unavailable, allowing attempt", "error", err)
		return false
	}
	return locked
}

// RecordFailure counts one failed authentication attempt and sets the
// lock marker when the threshold is crossed. Locked accounts stop
// accumulating failures.
func (g *LockoutGuard) RecordFailure(ctx context.Context, identity string) {
	if g.CheckLocked(ctx, identity) {
		return
	}

	count, err := g.store.IncrementAndGet(ctx, failureKey(identity), g.counterTTL)
	if err != nil {
		slog.Warn("failed to record authentication failure", "error", err)
		return
	}

	if count >= int64(g.threshold) {
		if err := g.store.Put(ctx, lockKey(identity), 1, g.lockTTL); err != nil {
			slog.Warn("failed to write lockout marker", "error", err)
			return
		}
		metrics.ObserveLockout()
		slog.Warn("account locked after repeated failures", "identity", normalizeIdentity(identity), "failures", count)
	}
}

// Clear removes both the failure counter and the lock marker. Called on
// every successful authentication.
func (g *LockoutGuard) Clear(ctx context.Context, identity string) {
	if err := g.store.Delete(ctx, failureKey(identity)); err != nil {
		slog.Warn("failed to clear failure counter", "error", err)
	}
	if err := g.store.Delete(ctx, lockKey(identity)); err != nil {
		slog.Warn("failed to clear lockout marker", "error", err)
	}
}
