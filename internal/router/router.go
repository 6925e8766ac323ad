package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-member-portal/internal/config"
	"go-member-portal/internal/handler"
	"go-member-portal/internal/metrics"
	"go-member-portal/internal/middleware"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	PIM        *handler.PIMHandler
	Assume     *handler.AssumeHandler
	Permission *handler.PermissionHandler
	Audit      *handler.AuditHandler
	Portal     *handler.PortalHandler
}

func New(cfg *config.Config, guard *middleware.Guard, h Handlers) http.Handler {
	r := chi.NewRouter()
	perimeter := middleware.NewPerimeterLimit(cfg.RateLimitRPM, cfg.AuthRateLimitMax)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(perimeter.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Signed-out landing pages. The guard redirects here; serving them
	// through the same process keeps deployments single-binary.
	r.Get(cfg.SignInPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("sign in required"))
	})
	r.Get(cfg.AccessDenied, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("access denied"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/logout", h.Auth.Logout)
			auth.With(guard.RequireSession(middleware.GuardOptions{})).Get("/me", h.Auth.Me)
		})

		// Privilege management. Hard fingerprint: a stolen cookie must
		// not be enough to change what a session can do.
		api.Route("/pim", func(pim chi.Router) {
			pim.Use(guard.RequireSession(middleware.GuardOptions{Fingerprint: middleware.FingerprintHard}))
			pim.Post("/elevate", h.PIM.Elevate)
			pim.Delete("/elevate", h.PIM.Drop)
			pim.Get("/assume/targets", h.Assume.Targets)
			pim.Post("/assume", h.Assume.Assume)
			pim.Delete("/assume", h.Assume.Drop)
		})

		protected := middleware.GuardOptions{Endpoint: "api", Fingerprint: middleware.FingerprintSoft}
		api.With(guard.Protect(protected)).Get("/members", h.Portal.ListMembers)
		api.With(guard.Protect(protected)).Get("/minutes", h.Portal.ListMinutes)
		api.With(guard.Protect(protected)).Post("/minutes", h.Portal.CreateMinute)
		api.With(guard.Protect(protected)).Get("/vendors", h.Portal.ListVendors)

		admin := middleware.GuardOptions{Endpoint: "admin", Fingerprint: middleware.FingerprintHard}
		api.With(guard.Protect(admin)).Get("/permissions", h.Permission.List)
		api.With(guard.Protect(admin)).Put("/permissions", h.Permission.Set)
		api.With(guard.Protect(admin)).Get("/audit", h.Audit.List)
	})

	return r
}
