package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/metrics"
	"go-member-portal/internal/model"
)

// ElevationManager grants and revokes the time-boxed privilege uplift.
// The authoritative state lives inside the signed session; the counter
// store only carries a bookkeeping mirror so operators can see active
// elevations without decoding cookies.
type ElevationManager struct {
	store kvstore.Store
	audit *AuditService
	ttl   time.Duration
	now   func() time.Time
}

func NewElevationManager(store kvstore.Store, audit *AuditService, ttl time.Duration) *ElevationManager {
	return &ElevationManager{
		store: store,
		audit: audit,
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetClock overrides the manager clock. Only intended for tests.
func (m *ElevationManager) SetClock(now func() time.Time) {
	m.now = now
}

func elevationMirrorKey(identity string) string { return "pim:elevated:" + identity }

// Elevate opens (or resets) the elevation window for the session. A
// repeat call inside an open window restarts the full window; windows
// never stack.
func (m *ElevationManager) Elevate(ctx context.Context, s *model.Session, target model.Role, clientIP string) error {
	if !model.CanElevate(s.BaseRole, target) {
		return model.ErrNotElevationEligible
	}

	until := m.now().UTC().Add(m.ttl)
	s.ElevatedRole = target
	s.ElevatedUntil = &until

	if err := m.store.Put(ctx, elevationMirrorKey(s.Identity), until.Unix(), m.ttl); err != nil {
		slog.Warn("elevation mirror write failed", "identity", s.Identity, "error", err)
	}

	m.audit.Record(ctx, s.Identity, target, model.AuditActionElevate,
		fmt.Sprintf("until=%s", until.Format(time.RFC3339)), clientIP)
	metrics.ObservePrivilegeChange(model.AuditActionElevate)
	return nil
}

// Drop closes the elevation window immediately. Expired windows need no
// drop: expiry is resolved lazily wherever the effective role is read.
func (m *ElevationManager) Drop(ctx context.Context, s *model.Session, clientIP string) error {
	if s.ElevatedRole == "" {
		return model.ErrNoActiveElevation
	}

	dropped := s.ElevatedRole
	s.ClearElevation()

	if err := m.store.Delete(ctx, elevationMirrorKey(s.Identity)); err != nil {
		slog.Warn("elevation mirror delete failed", "identity", s.Identity, "error", err)
	}

	m.audit.Record(ctx, s.Identity, dropped, model.AuditActionDrop, "", clientIP)
	metrics.ObservePrivilegeChange(model.AuditActionDrop)
	return nil
}
