package service

import (
	"context"
	"log/slog"
	"time"

	"go-member-portal/internal/ids"
	"go-member-portal/internal/metrics"
	"go-member-portal/internal/model"
)

// AuditStore is the append-only security event sink.
type AuditStore interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	List(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService wraps the sink so every write is best-effort: a failed
// audit insert is logged and counted, but it never aborts the business
// action that triggered it.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// Record appends one security event. It deliberately returns nothing;
// call sites cannot make a transaction depend on audit success.
func (s *AuditService) Record(ctx context.Context, actor string, role model.Role, action string, detail string, clientIP string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		ID:         ids.New(),
		OccurredAt: s.now().UTC(),
		Actor:      actor,
		Role:       string(role),
		Action:     action,
		Detail:     detail,
		ClientIP:   clientIP,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		metrics.ObserveAuditDropped()
		slog.Error("audit write failed", "action", action, "actor", actor, "error", err)
	}
}

// Query lists audit entries for the admin surface.
func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	return s.store.List(ctx, query)
}
