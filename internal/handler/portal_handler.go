package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-member-portal/internal/ids"
	"go-member-portal/internal/middleware"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
	"go-member-portal/pkg/apierror"
)

// minute is one board-meeting record. Kept in memory; board content
// lives here only to give the protected surfaces something real to
// serve.
type minute struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PortalHandler serves the member-facing resources sitting behind the
// guard: the member directory, board minutes, and the vendor list.
type PortalHandler struct {
	audit *service.AuditService

	mu      sync.RWMutex
	minutes []minute
	vendors []vendor
}

func NewPortalHandler(audit *service.AuditService) *PortalHandler {
	return &PortalHandler{
		audit: audit,
		vendors: []vendor{
			{ID: ids.New(), Name: "Evergreen Landscaping"},
			{ID: ids.New(), Name: "Summit Elevator Service"},
		},
	}
}

func (h *PortalHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	// Directory data is served from the identity collaborator in a full
	// deployment; the guard in front of this route is what matters here.
	writeSuccess(w, http.StatusOK, []map[string]any{}, nil)
}

func (h *PortalHandler) ListMinutes(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	out := make([]minute, len(h.minutes))
	copy(out, h.minutes)
	h.mu.RUnlock()

	writeSuccess(w, http.StatusOK, out, nil)
}

func (h *PortalHandler) CreateMinute(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}
	role, _ := middleware.EffectiveRoleFromContext(r.Context())

	var payload model.CreateMinuteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.Title = strings.TrimSpace(payload.Title)
	if payload.Title == "" {
		writeError(w, apierror.New("BAD_REQUEST", "title is required", "title", http.StatusBadRequest))
		return
	}

	entry := minute{
		ID:        ids.New(),
		Title:     payload.Title,
		Body:      payload.Body,
		Author:    session.Identity,
		CreatedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	h.minutes = append(h.minutes, entry)
	h.mu.Unlock()

	// Attributed to the effective role, so the trail shows the
	// elevation or assumption the write happened under.
	h.audit.Record(r.Context(), session.Identity, role, "minutes.create", "title="+entry.Title, middleware.ClientIP(r))

	writeSuccess(w, http.StatusCreated, entry, nil)
}

func (h *PortalHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	out := make([]vendor, len(h.vendors))
	copy(out, h.vendors)
	h.mu.RUnlock()

	writeSuccess(w, http.StatusOK, out, nil)
}
