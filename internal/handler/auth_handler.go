package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-member-portal/internal/middleware"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
	"go-member-portal/pkg/apierror"
)

// loginEndpoint is the rate-limit bucket for credential submission. It
// is keyed by client IP because there is no session yet.
const loginEndpoint = "auth:login"

type AuthHandler struct {
	identity *service.IdentityService
	codec    *service.SessionCodec
	lockout  *service.LockoutGuard
	limiter  *service.RateLimiter
	audit    *service.AuditService
}

func NewAuthHandler(identity *service.IdentityService, codec *service.SessionCodec, lockout *service.LockoutGuard, limiter *service.RateLimiter, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		codec:    codec,
		lockout:  lockout,
		limiter:  limiter,
		audit:    audit,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	clientIP := middleware.ClientIP(r)
	decision := h.limiter.Allow(r.Context(), loginEndpoint, clientIP)
	if !decision.Allowed {
		retryAfter := int(time.Until(decision.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, model.ErrRateLimited)
		return
	}

	if h.lockout.CheckLocked(r.Context(), payload.Email) {
		writeError(w, model.ErrAccountLocked)
		return
	}

	user, err := h.identity.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			h.lockout.RecordFailure(r.Context(), payload.Email)
		}
		writeError(w, model.ErrInvalidCredentials)
		return
	}

	h.lockout.Clear(r.Context(), user.Email)

	session := h.codec.NewSession(user.ID, user.BaseRole, clientIP, r.UserAgent())
	token, err := h.codec.Encode(session)
	if err != nil {
		writeError(w, err)
		return
	}

	h.codec.WriteCookie(w, token)
	h.audit.Record(r.Context(), user.ID, user.BaseRole, model.AuditActionLogin, "", clientIP)

	writeSuccess(w, http.StatusOK, sessionInfo(&session, time.Now()), nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.codec.ClearCookie(w)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	writeSuccess(w, http.StatusOK, sessionInfo(session, time.Now()), nil)
}

func sessionInfo(s *model.Session, now time.Time) model.SessionInfo {
	info := model.SessionInfo{
		Identity:      s.Identity,
		BaseRole:      string(s.BaseRole),
		EffectiveRole: string(s.EffectiveRole(now)),
		ExpiresAt:     s.ExpiresAt.Format(time.RFC3339),
	}
	if s.ElevationActive(now) {
		info.ElevatedRole = string(s.ElevatedRole)
		info.ElevatedUntil = s.ElevatedUntil.Format(time.RFC3339)
	}
	if s.AssumptionActive(now) {
		info.AssumedRole = string(s.AssumedRole)
		info.AssumedUntil = s.AssumedUntil.Format(time.RFC3339)
	}
	return info
}
