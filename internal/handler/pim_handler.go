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

// PIMHandler exposes time-boxed elevation. Every privilege change is
// re-signed into the cookie immediately so the new effective role is
// visible on the very next request.
type PIMHandler struct {
	elevation *service.ElevationManager
	codec     *service.SessionCodec
}

func NewPIMHandler(elevation *service.ElevationManager, codec *service.SessionCodec) *PIMHandler {
	return &PIMHandler{elevation: elevation, codec: codec}
}

func (h *PIMHandler) Elevate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.ElevateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	role, ok := model.ParseRole(payload.Role)
	if !ok {
		writeError(w, apierror.New("BAD_REQUEST", "unknown role", "role", http.StatusBadRequest))
		return
	}

	if err := h.elevation.Elevate(r.Context(), session, role, middleware.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	h.reissue(w, session)
}

func (h *PIMHandler) Drop(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	if err := h.elevation.Drop(r.Context(), session, middleware.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	h.reissue(w, session)
}

func (h *PIMHandler) reissue(w http.ResponseWriter, session *model.Session) {
	token, err := h.codec.Encode(*session)
	if err != nil {
		writeError(w, err)
		return
	}

	h.codec.WriteCookie(w, token)
	writeSuccess(w, http.StatusOK, sessionInfo(session, time.Now()), nil)
}
