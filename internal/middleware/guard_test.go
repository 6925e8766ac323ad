package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/model"
	"go-member-portal/internal/service"
)

func newTestGuard(t *testing.T) (*Guard, *service.SessionCodec) {
	t.Helper()

	codec := service.NewSessionCodec("guard-test-secret", "portal_session", false, 12*time.Hour, 45*time.Minute)
	limiter := service.NewRateLimiter(kvstore.NewMemoryStore(), map[string]service.RateLimitRule{
		"api": {Max: 3, Window: time.Minute},
	})
	resolver := service.NewPermissionResolver(nil)
	return NewGuard(codec, limiter, resolver, "/signin", "/access-denied"), codec
}

func signedRequest(t *testing.T, codec *service.SessionCodec, method string, path string, role model.Role) *http.Request {
	t.Helper()

	session := codec.NewSession("user-1", role, "203.0.113.7", "test-agent")
	token, err := codec.Encode(session)
	require.NoError(t, err)

	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "203.0.113.7:4242"
	r.Header.Set("User-Agent", "test-agent")
	r.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
	return r
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	t.Parallel()

	guard, _ := newTestGuard(t)
	var hit bool
	h := guard.Protect(GuardOptions{})(okHandler(&hit))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/members", nil))

	require.False(t, hit)
	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "/signin?next=%2Fapi%2Fv1%2Fmembers")
}

func TestGuardRejectsTamperedSession(t *testing.T) {
	t.Parallel()

	guard, _ := newTestGuard(t)
	other := service.NewSessionCodec("a-different-secret", "portal_session", false, 12*time.Hour, 45*time.Minute)
	session := other.NewSession("user-1", model.RoleAdmin, "ip", "ua")
	token, err := other.Encode(session)
	require.NoError(t, err)

	var hit bool
	h := guard.Protect(GuardOptions{})(okHandler(&hit))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)
	r.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.False(t, hit)
	require.Equal(t, http.StatusFound, w.Code)
}

func TestGuardPermissionStages(t *testing.T) {
	t.Parallel()

	guard, codec := newTestGuard(t)
	var hit bool
	h := guard.Protect(GuardOptions{})(okHandler(&hit))

	t.Run("member may read members", func(t *testing.T) {
		hit = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signedRequest(t, codec, http.MethodGet, "/api/v1/members", model.RoleMember))
		require.True(t, hit)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("member may not write members", func(t *testing.T) {
		hit = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signedRequest(t, codec, http.MethodPost, "/api/v1/members", model.RoleMember))
		require.False(t, hit)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("member is redirected off the audit surface", func(t *testing.T) {
		hit = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signedRequest(t, codec, http.MethodGet, "/api/v1/audit", model.RoleMember))
		require.False(t, hit)
		require.Equal(t, http.StatusFound, w.Code)
		require.Contains(t, w.Header().Get("Location"), "/access-denied?path=%2Fapi%2Fv1%2Faudit&required=read")
	})

	t.Run("un-elevated board acts as member", func(t *testing.T) {
		hit = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signedRequest(t, codec, http.MethodPost, "/api/v1/minutes", model.RoleBoard))
		require.False(t, hit)
		require.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("elevated board writes minutes", func(t *testing.T) {
		hit = false
		session := codec.NewSession("b1", model.RoleBoard, "203.0.113.7", "test-agent")
		until := time.Now().Add(time.Hour)
		session.ElevatedRole = model.RoleBoard
		session.ElevatedUntil = &until
		token, err := codec.Encode(session)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodPost, "/api/v1/minutes", nil)
		r.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		require.True(t, hit)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGuardRateLimits(t *testing.T) {
	t.Parallel()

	guard, codec := newTestGuard(t)
	var hit bool
	h := guard.Protect(GuardOptions{Endpoint: "api"})(okHandler(&hit))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signedRequest(t, codec, http.MethodGet, "/api/v1/members", model.RoleMember))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, codec, http.MethodGet, "/api/v1/members", model.RoleMember))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGuardFingerprintModes(t *testing.T) {
	t.Parallel()

	guard, codec := newTestGuard(t)
	var hit bool

	session := codec.NewSession("user-1", model.RoleMember, "203.0.113.7", "test-agent")
	token, err := codec.Encode(session)
	require.NoError(t, err)

	fromElsewhere := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)
		r.RemoteAddr = "198.51.100.1:4242"
		r.Header.Set("User-Agent", "another-agent")
		r.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
		return r
	}

	t.Run("hard mode rejects a moved session", func(t *testing.T) {
		hit = false
		h := guard.Protect(GuardOptions{Fingerprint: FingerprintHard})(okHandler(&hit))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fromElsewhere())
		require.False(t, hit)
		require.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("soft mode lets it through", func(t *testing.T) {
		hit = false
		h := guard.Protect(GuardOptions{Fingerprint: FingerprintSoft})(okHandler(&hit))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fromElsewhere())
		require.True(t, hit)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGuardContextAndTouch(t *testing.T) {
	t.Parallel()

	guard, codec := newTestGuard(t)

	var gotIdentity string
	var gotRole model.Role
	h := guard.RequireSession(GuardOptions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		gotIdentity = session.Identity
		role, ok := EffectiveRoleFromContext(r.Context())
		require.True(t, ok)
		gotRole = role
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, signedRequest(t, codec, http.MethodGet, "/api/v1/session", model.RoleChair))

	require.Equal(t, "user-1", gotIdentity)
	require.Equal(t, model.RoleChair, gotRole)

	// The guard re-issues the cookie with a fresh activity timestamp.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "portal_session", cookies[0].Name)
	refreshed, err := codec.Decode(cookies[0].Value)
	require.NoError(t, err)
	require.Equal(t, "user-1", refreshed.Identity)
}
