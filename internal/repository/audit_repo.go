package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go-member-portal/internal/model"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. Rows are never updated or deleted by
// the application.
func (r *AuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, occurred_at, actor, role, action, detail, client_ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OccurredAt, entry.Actor, entry.Role, entry.Action, entry.Detail, entry.ClientIP)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the query, newest first.
func (r *AuditRepository) List(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if actor := strings.TrimSpace(query.Actor); actor != "" {
		where = append(where, "actor = "+arg(actor))
	}
	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, "action = "+arg(action))
	}
	if from := strings.TrimSpace(query.From); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("parse from: %w", model.ErrInvalidInput)
		}
		where = append(where, "occurred_at >= "+arg(t))
	}
	if to := strings.TrimSpace(query.To); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("parse to: %w", model.ErrInvalidInput)
		}
		where = append(where, "occurred_at <= "+arg(t))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT count(*) FROM audit_entries"+clause, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	listArgs := append(args, query.Limit, offset)
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, occurred_at, actor, role, action, detail, client_ip
		 FROM audit_entries%s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
			clause, len(args)+1, len(args)+2),
		listArgs...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Actor, &e.Role, &e.Action, &e.Detail, &e.ClientIP); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate audit entries: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}
	return entries, meta, nil
}
