package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-member-portal/internal/ids"
	"go-member-portal/internal/model"
)

// PermissionKey identifies one override row.
type PermissionKey struct {
	Route string
	Role  model.Role
}

type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// GetOverrides loads the full dynamic override table.
func (r *PermissionRepository) GetOverrides(ctx context.Context) (map[PermissionKey]model.PermissionLevel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT route, role, level FROM route_permissions`)
	if err != nil {
		return nil, fmt.Errorf("load permission overrides: %w", err)
	}
	defer rows.Close()

	overrides := map[PermissionKey]model.PermissionLevel{}
	for rows.Next() {
		var (
			route, role, rawLevel string
		)
		if err := rows.Scan(&route, &role, &rawLevel); err != nil {
			return nil, fmt.Errorf("scan permission override: %w", err)
		}
		level, ok := model.ParsePermissionLevel(rawLevel)
		if !ok {
			// An unknown level is treated as none rather than widening access.
			level = model.LevelNone
		}
		overrides[PermissionKey{Route: route, Role: model.Role(role)}] = level
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission overrides: %w", err)
	}
	return overrides, nil
}

// SetOverride upserts one override row and records the change in the
// audit table inside the same transaction, so a permission change can
// never land without its audit trail.
func (r *PermissionRepository) SetOverride(ctx context.Context, route string, role model.Role, level model.PermissionLevel, actor string, actorRole model.Role, clientIP string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin override tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT level FROM route_permissions WHERE route = $1 AND role = $2`,
		route, role).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read previous override: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO route_permissions (route, role, level, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (route, role) DO UPDATE SET level = $3, updated_by = $4, updated_at = $5`,
		route, role, level.String(), actor, now)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}

	old := "none"
	if previous.Valid {
		old = previous.String
	}
	detail := fmt.Sprintf("route=%s role=%s %s->%s", route, role, old, level.String())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_entries (id, occurred_at, actor, role, action, detail, client_ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ids.New(), now, actor, string(actorRole), model.AuditActionSetOverride, detail, clientIP)
	if err != nil {
		return fmt.Errorf("audit override: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit override tx: %w", err)
	}
	return nil
}
