package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go-member-portal/internal/metrics"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
)

// FingerprintMode controls how strictly a route binds the session to the
// client that created it.
type FingerprintMode int

const (
	// FingerprintDisabled skips the check entirely.
	FingerprintDisabled FingerprintMode = iota
	// FingerprintSoft logs a mismatch but lets the request through.
	FingerprintSoft
	// FingerprintHard rejects the request on mismatch.
	FingerprintHard
)

// GuardOptions tunes the protection pipeline per route group.
type GuardOptions struct {
	// Endpoint names the rate-limit bucket. Empty disables the
	// store-backed limiter for the group.
	Endpoint    string
	Fingerprint FingerprintMode
}

type contextKey string

const (
	sessionContextKey       contextKey = "portal_session"
	effectiveRoleContextKey contextKey = "effective_role"
)

// Guard composes the request-time security pipeline: session decode,
// rate limiting, and permission resolution, in that order. Each stage
// short-circuits, so a rejected request never reaches a later stage.
type Guard struct {
	codec    *service.SessionCodec
	limiter  *service.RateLimiter
	resolver *service.PermissionResolver

	signInPath       string
	accessDeniedPath string
	now              func() time.Time
}

func NewGuard(codec *service.SessionCodec, limiter *service.RateLimiter, resolver *service.PermissionResolver, signInPath string, accessDeniedPath string) *Guard {
	return &Guard{
		codec:            codec,
		limiter:          limiter,
		resolver:         resolver,
		signInPath:       signInPath,
		accessDeniedPath: accessDeniedPath,
		now:              time.Now,
	}
}

// SetClock overrides the guard clock. Only intended for tests.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// Protect returns the middleware chain for one route group.
func (g *Guard) Protect(opts GuardOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := g.authenticate(w, r, opts)
			if !ok {
				return
			}

			if opts.Endpoint != "" {
				decision := g.limiter.Allow(r.Context(), opts.Endpoint, session.Identity)
				if !decision.Allowed {
					retryAfter := int(time.Until(decision.ResetAt).Seconds())
					if retryAfter < 1 {
						retryAfter = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
					writeGuardError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
					return
				}
			}

			now := g.now()
			role := session.EffectiveRole(now)
			level := g.resolver.PermissionFor(r.URL.Path, role)

			if level == model.LevelNone {
				metrics.ObserveDenial("forbidden")
				g.redirectAccessDenied(w, r)
				return
			}
			if level == model.LevelRead && isMutating(r.Method) {
				metrics.ObserveDenial("read_only")
				writeGuardError(w, http.StatusForbidden, "FORBIDDEN", "write access required")
				return
			}

			g.touch(w, session)

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			ctx = context.WithValue(ctx, effectiveRoleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession authenticates without consulting the permission table.
// Used for self-service surfaces like session info and privilege
// management, which every signed-in identity may reach.
func (g *Guard) RequireSession(opts GuardOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := g.authenticate(w, r, opts)
			if !ok {
				return
			}

			g.touch(w, session)

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			ctx = context.WithValue(ctx, effectiveRoleContextKey, session.EffectiveRole(g.now()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request, opts GuardOptions) (*model.Session, bool) {
	token, ok := g.codec.ReadCookie(r)
	if !ok {
		metrics.ObserveDenial("no_session")
		g.redirectSignIn(w, r)
		return nil, false
	}

	clientIP := extractClientIP(r)
	userAgent := r.UserAgent()

	var session model.Session
	var err error
	switch opts.Fingerprint {
	case FingerprintHard:
		session, err = g.codec.DecodeFingerprinted(token, clientIP, userAgent)
	default:
		session, err = g.codec.Decode(token)
	}
	if err != nil {
		metrics.ObserveDenial(denialReason(err))
		g.codec.ClearCookie(w)
		g.redirectSignIn(w, r)
		return nil, false
	}

	if opts.Fingerprint == FingerprintSoft {
		expected := g.codec.Fingerprint(clientIP, userAgent)
		if session.Fingerprint != "" && session.Fingerprint != expected {
			slog.Warn("session fingerprint drift", "identity", session.Identity, "path", r.URL.Path, "ip", clientIP)
		}
	}

	return &session, true
}

// touch refreshes the activity timestamp and re-issues the cookie so an
// active session does not hit the inactivity timeout.
func (g *Guard) touch(w http.ResponseWriter, session *model.Session) {
	session.LastActivityAt = g.now().UTC()
	token, err := g.codec.Encode(*session)
	if err != nil {
		slog.Error("failed to re-sign session", "identity", session.Identity, "error", err)
		return
	}
	g.codec.WriteCookie(w, token)
}

func (g *Guard) redirectSignIn(w http.ResponseWriter, r *http.Request) {
	target := g.signInPath + "?next=" + url.QueryEscape(r.URL.Path)
	http.Redirect(w, r, target, http.StatusFound)
}

func (g *Guard) redirectAccessDenied(w http.ResponseWriter, r *http.Request) {
	required := "read"
	if isMutating(r.Method) {
		required = "write"
	}
	target := g.accessDeniedPath + "?path=" + url.QueryEscape(r.URL.Path) + "&required=" + required
	http.Redirect(w, r, target, http.StatusFound)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionExpired):
		return "expired"
	case errors.Is(err, model.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, model.ErrFingerprintMismatch):
		return "fingerprint_mismatch"
	default:
		return "malformed"
	}
}

// SessionFromContext returns the authenticated session placed by the
// guard.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok
}

// EffectiveRoleFromContext returns the role the request acts as,
// resolved once at guard time.
func EffectiveRoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(effectiveRoleContextKey).(model.Role)
	return role, ok
}

// ClientIP exposes the forwarded-aware client address to handlers.
func ClientIP(r *http.Request) string {
	return extractClientIP(r)
}

func writeGuardError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
