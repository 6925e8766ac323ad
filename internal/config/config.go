package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionSecret     string
	SessionCookieName string
	SessionTTL        time.Duration
	SessionIdleTTL    time.Duration
	CookieSecure      bool

	ElevationTTL time.Duration
	AssumeTTL    time.Duration

	LockoutThreshold  int
	LockoutDuration   time.Duration
	FailureCounterTTL time.Duration

	RateLimitRPM     int
	AuthRateLimitMax int
	AuthRateWindow   time.Duration

	CORSOrigins    []string
	SignInPath     string
	AccessDenied   string
	PermRefreshInt time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              getInt("DB_MAX_CONNS", 10),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:                 getInt("REDIS_DB", 0),
		SessionSecret:           strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionCookieName:       getEnv("SESSION_COOKIE_NAME", "portal_session"),
		SessionTTL:              getDuration("SESSION_TTL", 12*time.Hour),
		SessionIdleTTL:          getDuration("SESSION_IDLE_TTL", 45*time.Minute),
		CookieSecure:            getBool("COOKIE_SECURE", true),
		ElevationTTL:            getDuration("ELEVATION_TTL", 2*time.Hour),
		AssumeTTL:               getDuration("ASSUME_TTL", 2*time.Hour),
		LockoutThreshold:        getInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:         getDuration("LOCKOUT_DURATION", 15*time.Minute),
		FailureCounterTTL:       getDuration("FAILURE_COUNTER_TTL", time.Hour),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitMax:        getInt("AUTH_RATE_LIMIT_MAX", 10),
		AuthRateWindow:          getDuration("AUTH_RATE_WINDOW", time.Minute),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		SignInPath:              getEnv("SIGN_IN_PATH", "/signin"),
		AccessDenied:            getEnv("ACCESS_DENIED_PATH", "/access-denied"),
		PermRefreshInt:          getDuration("PERMISSION_REFRESH_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if c.SessionIdleTTL <= 0 || c.SessionIdleTTL > c.SessionTTL {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive and not exceed SESSION_TTL")
	}

	if c.ElevationTTL <= 0 || c.AssumeTTL <= 0 {
		return fmt.Errorf("elevation and assume TTLs must be positive")
	}

	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive")
	}

	if c.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	if c.AuthRateLimitMax <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_MAX must be positive")
	}

	if c.AuthRateWindow < time.Second {
		return fmt.Errorf("AUTH_RATE_WINDOW must be at least one second")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
