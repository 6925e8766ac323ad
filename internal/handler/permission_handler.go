package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"go-member-portal/internal/middleware"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
	"go-member-portal/pkg/apierror"
)

type overrideWriter interface {
	SetOverride(ctx context.Context, route string, role model.Role, level model.PermissionLevel, actor string, actorRole model.Role, clientIP string) error
}

// PermissionHandler is the steward surface for the dynamic permission
// table. Writes go through the repository so the override row and its
// audit record commit together; the resolver is refreshed immediately
// after so the change applies without waiting for the next cadence.
type PermissionHandler struct {
	overrides overrideWriter
	resolver  *service.PermissionResolver
}

func NewPermissionHandler(overrides overrideWriter, resolver *service.PermissionResolver) *PermissionHandler {
	return &PermissionHandler{overrides: overrides, resolver: resolver}
}

func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.resolver.Overrides()

	entries := make([]model.OverrideEntry, 0, len(snapshot))
	for key, level := range snapshot {
		entries = append(entries, model.OverrideEntry{
			Route: key.Route,
			Role:  string(key.Role),
			Level: level.String(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Route != entries[j].Route {
			return entries[i].Route < entries[j].Route
		}
		return entries[i].Role < entries[j].Role
	})

	writeSuccess(w, http.StatusOK, entries, nil)
}

func (h *PermissionHandler) Set(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}
	actorRole, _ := middleware.EffectiveRoleFromContext(r.Context())

	var payload model.SetOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.Route = strings.TrimSpace(payload.Route)
	if payload.Route == "" || !strings.HasPrefix(payload.Route, "/") {
		writeError(w, apierror.New("BAD_REQUEST", "route must be an absolute path", "route", http.StatusBadRequest))
		return
	}

	role, ok := model.ParseRole(payload.Role)
	if !ok {
		writeError(w, apierror.New("BAD_REQUEST", "unknown role", "role", http.StatusBadRequest))
		return
	}

	level, ok := model.ParsePermissionLevel(payload.Level)
	if !ok {
		writeError(w, apierror.New("BAD_REQUEST", "unknown permission level", "level", http.StatusBadRequest))
		return
	}

	err := h.overrides.SetOverride(r.Context(), payload.Route, role, level, session.Identity, actorRole, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.resolver.Refresh(r.Context()); err != nil {
		// The row is committed; the cadence refresh will pick it up.
		writeSuccess(w, http.StatusAccepted, map[string]any{"applied": false}, nil)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"applied": true}, nil)
}
