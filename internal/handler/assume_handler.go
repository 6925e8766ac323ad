package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go-member-portal/internal/middleware"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
	"go-member-portal/pkg/apierror"
)

type AssumeHandler struct {
	assume *service.AssumeManager
	codec  *service.SessionCodec
}

func NewAssumeHandler(assume *service.AssumeManager, codec *service.SessionCodec) *AssumeHandler {
	return &AssumeHandler{assume: assume, codec: codec}
}

// Targets lists the roles this identity may assume.
func (h *AssumeHandler) Targets(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	targets := model.AssumableRoles(session.BaseRole)
	out := make([]string, 0, len(targets))
	for _, role := range targets {
		out = append(out, string(role))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"targets": out}, nil)
}

func (h *AssumeHandler) Assume(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.AssumeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	role, ok := model.ParseRole(payload.Role)
	if !ok {
		writeError(w, apierror.New("BAD_REQUEST", "unknown role", "role", http.StatusBadRequest))
		return
	}

	if err := h.assume.Assume(r.Context(), session, role, middleware.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	h.reissue(w, session)
}

func (h *AssumeHandler) Drop(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	if err := h.assume.Drop(r.Context(), session, middleware.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	h.reissue(w, session)
}

func (h *AssumeHandler) reissue(w http.ResponseWriter, session *model.Session) {
	token, err := h.codec.Encode(*session)
	if err != nil {
		writeError(w, err)
		return
	}

	h.codec.WriteCookie(w, token)
	writeSuccess(w, http.StatusOK, sessionInfo(session, time.Now()), nil)
}
