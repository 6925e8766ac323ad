package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-member-portal/internal/config"
	"go-member-portal/internal/handler"
	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/middleware"
	"go-member-portal/internal/model"
	"go-member-portal/internal/repository"
	"go-member-portal/internal/router"
	"go-member-portal/internal/service"
)

const testUserAgent = "integration-agent"

// memoryUsers stands in for the identity collaborator.
type memoryUsers struct {
	users map[string]model.User
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := m.users[email]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

// memoryAudit is an in-process audit sink with the same append-only
// contract as the database-backed one.
type memoryAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memoryAudit) Append(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) List(_ context.Context, _ model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out, model.Meta{Page: 1, Limit: len(out), Total: len(out), TotalPages: 1}, nil
}

func (m *memoryAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// memoryOverrides backs the permission resolver without a database.
type memoryOverrides struct {
	mu   sync.Mutex
	rows map[repository.PermissionKey]model.PermissionLevel
}

func (m *memoryOverrides) GetOverrides(_ context.Context) (map[repository.PermissionKey]model.PermissionLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[repository.PermissionKey]model.PermissionLevel, len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out, nil
}

func (m *memoryOverrides) SetOverride(_ context.Context, route string, role model.Role, level model.PermissionLevel, _ string, _ model.Role, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[repository.PermissionKey]model.PermissionLevel{}
	}
	m.rows[repository.PermissionKey{Route: route, Role: role}] = level
	return nil
}

type portalFixture struct {
	handler http.Handler
	audit   *memoryAudit
	cfg     *config.Config
}

func newPortal(t *testing.T) *portalFixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("portal-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &memoryUsers{users: map[string]model.User{
		"member@example.org":  {ID: "member-1", Email: "member@example.org", PasswordHash: string(hash), BaseRole: model.RoleMember, Status: "active"},
		"chair@example.org":   {ID: "chair-1", Email: "chair@example.org", PasswordHash: string(hash), BaseRole: model.RoleChair, Status: "active"},
		"board@example.org":   {ID: "board-1", Email: "board@example.org", PasswordHash: string(hash), BaseRole: model.RoleBoard, Status: "active"},
		"steward@example.org": {ID: "steward-1", Email: "steward@example.org", PasswordHash: string(hash), BaseRole: model.RoleSteward, Status: "active"},
	}}

	cfg := &config.Config{
		ServerPort:        "0",
		RequestTimeout:    10 * time.Second,
		SessionSecret:     "integration-secret",
		SessionCookieName: "portal_session",
		SessionTTL:        time.Hour,
		SessionIdleTTL:    30 * time.Minute,
		ElevationTTL:      time.Hour,
		AssumeTTL:         time.Hour,
		LockoutThreshold:  3,
		LockoutDuration:   15 * time.Minute,
		FailureCounterTTL: time.Hour,
		RateLimitRPM:      1000,
		AuthRateLimitMax:  100,
		AuthRateWindow:    time.Minute,
		SignInPath:        "/signin",
		AccessDenied:      "/access-denied",
	}

	counters := kvstore.NewMemoryStore()
	codec := service.NewSessionCodec(cfg.SessionSecret, cfg.SessionCookieName, false, cfg.SessionTTL, cfg.SessionIdleTTL)
	limiter := service.NewRateLimiter(counters, map[string]service.RateLimitRule{
		"auth:login": {Max: cfg.AuthRateLimitMax, Window: cfg.AuthRateWindow},
		"api":        {Max: cfg.RateLimitRPM, Window: time.Minute},
		"admin":      {Max: cfg.RateLimitRPM, Window: time.Minute},
	})
	lockout := service.NewLockoutGuard(counters, cfg.LockoutThreshold, cfg.FailureCounterTTL, cfg.LockoutDuration)

	audit := &memoryAudit{}
	auditService := service.NewAuditService(audit)
	identityService := service.NewIdentityService(users)
	elevation := service.NewElevationManager(counters, auditService, cfg.ElevationTTL)
	assume := service.NewAssumeManager(counters, auditService, cfg.AssumeTTL)

	overrides := &memoryOverrides{}
	resolver := service.NewPermissionResolver(overrides)
	guard := middleware.NewGuard(codec, limiter, resolver, cfg.SignInPath, cfg.AccessDenied)

	h := router.New(cfg, guard, router.Handlers{
		Auth:       handler.NewAuthHandler(identityService, codec, lockout, limiter, auditService),
		PIM:        handler.NewPIMHandler(elevation, codec),
		Assume:     handler.NewAssumeHandler(assume, codec),
		Permission: handler.NewPermissionHandler(overrides, resolver),
		Audit:      handler.NewAuditHandler(auditService),
		Portal:     handler.NewPortalHandler(auditService),
	})

	return &portalFixture{handler: h, audit: audit, cfg: cfg}
}

// do runs one request through the router with a stable client identity
// so session fingerprints stay valid across calls.
func (f *portalFixture) do(t *testing.T, method string, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *portalFixture) login(t *testing.T, email string, password string) []*http.Cookie {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login for %s failed with status %d: %s", email, rec.Code, rec.Body.String())
	}
	return sessionCookies(rec)
}

// sessionCookies keeps only the last portal cookie in the response,
// the same way a browser resolves repeated Set-Cookie headers.
func sessionCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var last *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "portal_session" && c.Value != "" {
			last = c
		}
	}
	if last == nil {
		return nil
	}
	return []*http.Cookie{last}
}
