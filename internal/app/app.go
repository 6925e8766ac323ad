package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-member-portal/internal/config"
	"go-member-portal/internal/database"
	"go-member-portal/internal/handler"
	"go-member-portal/internal/kvstore"
	"go-member-portal/internal/middleware"
	"go-member-portal/internal/repository"
	"go-member-portal/internal/router"
	"go-member-portal/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.SQL)
	permissionRepo := repository.NewPermissionRepository(db.SQL)
	auditRepo := repository.NewAuditRepository(db.SQL)
	slog.Info("database ready")

	// Counters fall back to process memory when Redis is not
	// configured. Fine for a single replica; limits and lockouts then
	// do not survive a restart.
	var counters kvstore.Store
	var closeStore func()
	if cfg.RedisAddr != "" {
		redisStore, err := kvstore.Dial(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		counters = redisStore
		closeStore = func() { _ = redisStore.Close() }
		slog.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		counters = kvstore.NewMemoryStore()
		closeStore = func() {}
		slog.Warn("REDIS_ADDR not set, using in-memory counters")
	}

	codec := service.NewSessionCodec(cfg.SessionSecret, cfg.SessionCookieName, cfg.CookieSecure, cfg.SessionTTL, cfg.SessionIdleTTL)
	// The admin bucket is a third of the general one, but never zero:
	// a zero Max would fall back to the looser default rule.
	adminMax := cfg.RateLimitRPM / 3
	if adminMax < 1 {
		adminMax = 1
	}
	limiter := service.NewRateLimiter(counters, map[string]service.RateLimitRule{
		"auth:login": {Max: cfg.AuthRateLimitMax, Window: cfg.AuthRateWindow},
		"api":        {Max: cfg.RateLimitRPM, Window: time.Minute},
		"admin":      {Max: adminMax, Window: time.Minute},
	})
	lockout := service.NewLockoutGuard(counters, cfg.LockoutThreshold, cfg.FailureCounterTTL, cfg.LockoutDuration)

	auditService := service.NewAuditService(auditRepo)
	identityService := service.NewIdentityService(userRepo)
	elevation := service.NewElevationManager(counters, auditService, cfg.ElevationTTL)
	assume := service.NewAssumeManager(counters, auditService, cfg.AssumeTTL)

	resolver := service.NewPermissionResolver(permissionRepo)
	if err := resolver.Refresh(context.Background()); err != nil {
		slog.Warn("initial permission override load failed, starting on static defaults", "error", err)
	}
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	go resolver.StartRefreshing(refreshCtx, cfg.PermRefreshInt)

	guard := middleware.NewGuard(codec, limiter, resolver, cfg.SignInPath, cfg.AccessDenied)

	appRouter := router.New(cfg, guard, router.Handlers{
		Auth:       handler.NewAuthHandler(identityService, codec, lockout, limiter, auditService),
		PIM:        handler.NewPIMHandler(elevation, codec),
		Assume:     handler.NewAssumeHandler(assume, codec),
		Permission: handler.NewPermissionHandler(permissionRepo, resolver),
		Audit:      handler.NewAuditHandler(auditService),
		Portal:     handler.NewPortalHandler(auditService),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			refreshCancel,
			closeStore,
			func() { db.Close() },
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
