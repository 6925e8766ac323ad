package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go-member-portal/internal/model"
	"go-member-portal/internal/repository"
)

// OverrideSource supplies the dynamic per-route permission table.
type OverrideSource interface {
	GetOverrides(ctx context.Context) (map[repository.PermissionKey]model.PermissionLevel, error)
}

// staticPermission is one compiled-in default row. The static table is
// the safety net: the portal stays correctly restrictive with an empty
// or unreachable override store.
type staticPermission struct {
	prefix string
	grants map[model.Role]model.PermissionLevel
}

var defaultPermissions = []staticPermission{
	{
		prefix: "/api/v1/members",
		grants: map[model.Role]model.PermissionLevel{
			model.RoleMember:  model.LevelRead,
			model.RoleChair:   model.LevelRead,
			model.RoleBoard:   model.LevelWrite,
			model.RoleSteward: model.LevelRead,
			model.RoleAdmin:   model.LevelWrite,
		},
	},
	{
		prefix: "/api/v1/minutes",
		grants: map[model.Role]model.PermissionLevel{
			model.RoleChair: model.LevelRead,
			model.RoleBoard: model.LevelWrite,
			model.RoleAdmin: model.LevelWrite,
		},
	},
	{
		prefix: "/api/v1/vendors",
		grants: map[model.Role]model.PermissionLevel{
			model.RoleMember:  model.LevelRead,
			model.RoleChair:   model.LevelRead,
			model.RoleBoard:   model.LevelWrite,
			model.RoleSteward: model.LevelRead,
			model.RoleAdmin:   model.LevelWrite,
		},
	},
	{
		prefix: "/api/v1/permissions",
		grants: map[model.Role]model.PermissionLevel{
			model.RoleSteward: model.LevelWrite,
			model.RoleAdmin:   model.LevelRead,
		},
	},
	{
		prefix: "/api/v1/audit",
		grants: map[model.Role]model.PermissionLevel{
			model.RoleSteward: model.LevelRead,
			model.RoleAdmin:   model.LevelRead,
		},
	},
}

// PermissionResolver answers permissionFor(route, role) from a two-tier
// lookup: dynamic override rows first, compiled static defaults second,
// longest matching route prefix wins within each tier.
type PermissionResolver struct {
	source OverrideSource

	mu          sync.RWMutex
	overrides   map[repository.PermissionKey]model.PermissionLevel
	refreshedAt time.Time
}

func NewPermissionResolver(source OverrideSource) *PermissionResolver {
	return &PermissionResolver{
		source:    source,
		overrides: map[repository.PermissionKey]model.PermissionLevel{},
	}
}

// Refresh reloads the override table. On failure the last good snapshot
// stays in place; the resolver never widens access because the store is
// down.
func (r *PermissionResolver) Refresh(ctx context.Context) error {
	if r.source == nil {
		return nil
	}

	overrides, err := r.source.GetOverrides(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.overrides = overrides
	r.refreshedAt = time.Now().UTC()
	r.mu.Unlock()
	return nil
}

// StartRefreshing reloads the override table on a cadence until the
// context is cancelled.
func (r *PermissionResolver) StartRefreshing(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.source == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				slog.Warn("permission override refresh failed, keeping last snapshot", "error", err)
			}
		}
	}
}

// PermissionFor computes the access level for a route path and role.
// Repeated calls with the same inputs and snapshot are idempotent.
func (r *PermissionResolver) PermissionFor(route string, role model.Role) model.PermissionLevel {
	route = normalizeRoute(route)

	if level, ok := r.overrideFor(route, role); ok {
		return level
	}

	best := -1
	level := model.LevelNone
	for _, entry := range defaultPermissions {
		if !prefixMatch(route, entry.prefix) || len(entry.prefix) <= best {
			continue
		}
		best = len(entry.prefix)
		level = entry.grants[role]
	}
	return level
}

// Overrides returns a copy of the current override snapshot.
func (r *PermissionResolver) Overrides() map[repository.PermissionKey]model.PermissionLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[repository.PermissionKey]model.PermissionLevel, len(r.overrides))
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

func (r *PermissionResolver) overrideFor(route string, role model.Role) (model.PermissionLevel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := -1
	level := model.LevelNone
	found := false
	for key, l := range r.overrides {
		if key.Role != role {
			continue
		}
		prefix := normalizeRoute(key.Route)
		if !prefixMatch(route, prefix) || len(prefix) <= best {
			continue
		}
		best = len(prefix)
		level = l
		found = true
	}
	return level, found
}

func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}

// prefixMatch matches whole path segments, so /api/v1/minutes does not
// match /api/v1/minutes-archive.
func prefixMatch(route string, prefix string) bool {
	if !strings.HasPrefix(route, prefix) {
		return false
	}
	return len(route) == len(prefix) || route[len(prefix)] == '/'
}
