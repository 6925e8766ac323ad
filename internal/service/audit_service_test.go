package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-member-portal/internal/model"
)

func TestAuditRecordPopulatesEntry(t *testing.T) {
	t.Parallel()

	sink := &recordingAuditStore{}
	svc := NewAuditService(sink)
	svc.now = func() time.Time {
		return time.Date(2026, 4, 2, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	}

	svc.Record(context.Background(), "u1", model.RoleBoard, model.AuditActionElevate, "until=2026-04-02T16:30:00Z", "198.51.100.9")

	require.Len(t, sink.entries, 1)
	got := sink.entries[0]
	require.NotEmpty(t, got.ID)
	require.Equal(t, time.UTC, got.OccurredAt.Location())
	require.Equal(t, "u1", got.Actor)
	require.Equal(t, string(model.RoleBoard), got.Role)
	require.Equal(t, model.AuditActionElevate, got.Action)
	require.Equal(t, "198.51.100.9", got.ClientIP)
}

func TestAuditRecordBestEffort(t *testing.T) {
	t.Parallel()

	sink := &recordingAuditStore{err: errors.New("insert failed")}
	svc := NewAuditService(sink)

	// A broken sink must not panic or surface an error to the caller.
	svc.Record(context.Background(), "u1", model.RoleAdmin, model.AuditActionLogin, "", "ip")
	require.Empty(t, sink.entries)

	var nilSvc *AuditService
	nilSvc.Record(context.Background(), "u1", model.RoleAdmin, model.AuditActionLogin, "", "ip")
}

func TestAuditQueryPassesThrough(t *testing.T) {
	t.Parallel()

	sink := &recordingAuditStore{}
	svc := NewAuditService(sink)
	svc.Record(context.Background(), "u1", model.RoleSteward, model.AuditActionAssume, "prior=member", "ip")
	svc.Record(context.Background(), "u2", model.RoleAdmin, model.AuditActionClear, "", "ip")

	entries, meta, err := svc.Query(context.Background(), model.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, meta.Total)
}
