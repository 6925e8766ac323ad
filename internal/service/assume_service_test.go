package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/model"
)

func TestAssumeEligibility(t *testing.T) {
	t.Parallel()

	manager := NewAssumeManager(kvstore.NewMemoryStore(), NewAuditService(&recordingAuditStore{}), 2*time.Hour)
	ctx := context.Background()

	t.Run("member cannot assume", func(t *testing.T) {
		s := model.Session{Identity: "m1", BaseRole: model.RoleMember}
		require.ErrorIs(t, manager.Assume(ctx, &s, model.RoleBoard, "ip"), model.ErrNotAssumeEligible)
	})

	t.Run("chair assumes board", func(t *testing.T) {
		s := model.Session{Identity: "c1", BaseRole: model.RoleChair}
		require.NoError(t, manager.Assume(ctx, &s, model.RoleBoard, "ip"))
		require.Equal(t, model.RoleBoard, s.EffectiveRole(time.Now()))
	})

	t.Run("admin assumes steward", func(t *testing.T) {
		s := model.Session{Identity: "a1", BaseRole: model.RoleAdmin}
		require.NoError(t, manager.Assume(ctx, &s, model.RoleSteward, "ip"))
		require.Equal(t, model.RoleSteward, s.EffectiveRole(time.Now()))
	})

	t.Run("chair cannot assume admin", func(t *testing.T) {
		s := model.Session{Identity: "c1", BaseRole: model.RoleChair}
		require.ErrorIs(t, manager.Assume(ctx, &s, model.RoleAdmin, "ip"), model.ErrNotAssumeEligible)
	})
}

func TestAssumeMutualExclusion(t *testing.T) {
	t.Parallel()

	manager := NewAssumeManager(kvstore.NewMemoryStore(), NewAuditService(&recordingAuditStore{}), 2*time.Hour)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	s := model.Session{Identity: "c1", BaseRole: model.RoleChair}
	require.NoError(t, manager.Assume(ctx, &s, model.RoleBoard, "ip"))
	firstUntil := *s.AssumedUntil

	// A second assumption while one is active is rejected and mutates
	// nothing, not even the window of the active one.
	err := manager.Assume(ctx, &s, model.RoleSteward, "ip")
	require.ErrorIs(t, err, model.ErrAssumptionActive)
	require.Equal(t, model.RoleBoard, s.AssumedRole)
	require.Equal(t, firstUntil, *s.AssumedUntil)

	// After the window lapses a new assumption is possible.
	clock = clock.Add(2*time.Hour + time.Minute)
	require.NoError(t, manager.Assume(ctx, &s, model.RoleSteward, "ip"))
	require.Equal(t, model.RoleSteward, s.AssumedRole)
}

func TestAssumeDropClearsAndAudits(t *testing.T) {
	t.Parallel()

	sink := &recordingAuditStore{}
	manager := NewAssumeManager(kvstore.NewMemoryStore(), NewAuditService(sink), 2*time.Hour)
	ctx := context.Background()

	s := model.Session{Identity: "a1", BaseRole: model.RoleAdmin}
	require.NoError(t, manager.Assume(ctx, &s, model.RoleBoard, "203.0.113.5"))
	require.NoError(t, manager.Drop(ctx, &s, "203.0.113.5"))
	require.Empty(t, s.AssumedRole)
	require.Nil(t, s.AssumedUntil)

	require.ErrorIs(t, manager.Drop(ctx, &s, "203.0.113.5"), model.ErrNoActiveAssumption)

	require.Len(t, sink.entries, 2)
	require.Equal(t, model.AuditActionAssume, sink.entries[0].Action)
	require.Contains(t, sink.entries[0].Detail, "prior=member")
	require.Equal(t, model.AuditActionClear, sink.entries[1].Action)
	// The audit row names the role that was effectively held.
	require.Equal(t, string(model.RoleBoard), sink.entries[0].Role)
}
