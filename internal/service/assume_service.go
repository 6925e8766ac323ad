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

// AssumeManager lets dual-capability and administrative identities
// temporarily operate as exactly one adjacent elevated role.
type AssumeManager struct {
	store kvstore.Store
	audit *AuditService
	ttl   time.Duration
	now   func() time.Time
}

func NewAssumeManager(store kvstore.Store, audit *AuditService, ttl time.Duration) *AssumeManager {
	return &AssumeManager{
		store: store,
		audit: audit,
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetClock overrides the manager clock. Only intended for tests.
func (m *AssumeManager) SetClock(now func() time.Time) {
	m.now = now
}

func assumeMirrorKey(identity string) string { return "pim:assumed:" + identity }

// Assume adopts the target role until the window lapses. A second call
// while an assumption is active is rejected without mutating state; the
// caller must Drop first or wait for the timeout.
func (m *AssumeManager) Assume(ctx context.Context, s *model.Session, target model.Role, clientIP string) error {
	now := m.now().UTC()
	if s.AssumptionActive(now) {
		return model.ErrAssumptionActive
	}
	if !model.CanAssume(s.BaseRole, target) {
		return model.ErrNotAssumeEligible
	}

	prior := s.EffectiveRole(now)
	until := now.Add(m.ttl)
	s.AssumedRole = target
	s.AssumedUntil = &until

	if err := m.store.Put(ctx, assumeMirrorKey(s.Identity), until.Unix(), m.ttl); err != nil {
		slog.Warn("assume mirror write failed", "identity", s.Identity, "error", err)
	}

	m.audit.Record(ctx, s.Identity, target, model.AuditActionAssume,
		fmt.Sprintf("prior=%s until=%s", prior, until.Format(time.RFC3339)), clientIP)
	metrics.ObservePrivilegeChange(model.AuditActionAssume)
	return nil
}

// Drop ends the assumption, expired or not, and records the clear.
func (m *AssumeManager) Drop(ctx context.Context, s *model.Session, clientIP string) error {
	if s.AssumedRole == "" {
		return model.ErrNoActiveAssumption
	}

	cleared := s.AssumedRole
	s.ClearAssumption()

	if err := m.store.Delete(ctx, assumeMirrorKey(s.Identity)); err != nil {
		slog.Warn("assume mirror delete failed", "identity", s.Identity, "error", err)
	}

	m.audit.Record(ctx, s.Identity, cleared, model.AuditActionClear, "", clientIP)
	metrics.ObservePrivilegeChange(model.AuditActionClear)
	return nil
}
