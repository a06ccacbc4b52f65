package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	HTTPBodyLimitBytes int64
	DBSlowQuery        time.Duration

	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthJWTAudience string
	AuthClockSkew   time.Duration
	AuthRoleClaim   string

	LedgerBaseURL             string
	LedgerAPIKey              string
	LedgerTimeout             time.Duration
	LedgerCacheTTL            time.Duration
	LedgerRetryAttempts       int
	LedgerBreakerMinRequests  int
	LedgerBreakerFailureRatio float64
	LedgerBreakerOpenFor      time.Duration

	IdempotencyTTL    time.Duration
	LockTTL           time.Duration
	PreviewRateLimit  int
	PreviewRateWindow time.Duration
	DraftIdleTTL      time.Duration
	DraftSweepEvery   time.Duration
	ReportRateLimit   int
	ReportRateWindow  time.Duration
	AuditEnabled      bool

	ReportCacheTTL    time.Duration
	ReportQueue       string
	CurrencyCode      string
	CurrencySymbol    string
	WorkerConcurrency int
}

// Load reads configuration from the process environment. A .env file in the
// working directory, when present, fills in unset variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	v := vars{k}

	cfg := &Config{
		AppEnv:             v.str("APP_ENV", "development"),
		Port:               v.str("PORT", "8080"),
		DatabaseURL:        v.str("DATABASE_URL", ""),
		RedisURL:           v.str("REDIS_URL", ""),
		CORSAllowedOrigins: v.list("CORS_ALLOWED_ORIGINS"),
		HTTPBodyLimitBytes: int64(v.int("HTTP_BODY_LIMIT_BYTES", 1<<20)),
		DBSlowQuery:        v.dur("DB_SLOW_QUERY", 250*time.Millisecond),

		AuthJWTSecret:   k.String("AUTH_JWT_SECRET"),
		AuthJWTIssuer:   v.str("AUTH_JWT_ISSUER", ""),
		AuthJWTAudience: v.str("AUTH_JWT_AUDIENCE", ""),
		AuthClockSkew:   v.dur("AUTH_CLOCK_SKEW", 30*time.Second),
		AuthRoleClaim:   v.str("AUTH_ROLE_CLAIM", "role"),

		LedgerBaseURL:             strings.TrimRight(v.str("LEDGER_BASE_URL", ""), "/"),
		LedgerAPIKey:              k.String("LEDGER_API_KEY"),
		LedgerTimeout:             v.dur("LEDGER_TIMEOUT", 3*time.Second),
		LedgerCacheTTL:            v.dur("LEDGER_CACHE_TTL", 2*time.Minute),
		LedgerRetryAttempts:       v.int("LEDGER_RETRY_ATTEMPTS", 2),
		LedgerBreakerMinRequests:  v.int("LEDGER_BREAKER_MIN_REQUESTS", 5),
		LedgerBreakerFailureRatio: v.float("LEDGER_BREAKER_FAILURE_RATIO", 0.5),
		LedgerBreakerOpenFor:      v.dur("LEDGER_BREAKER_OPEN_FOR", 30*time.Second),

		IdempotencyTTL:    v.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		LockTTL:           v.dur("LOCK_TTL", 10*time.Second),
		PreviewRateLimit:  v.int("PREVIEW_RATE_LIMIT", 120),
		PreviewRateWindow: v.dur("PREVIEW_RATE_WINDOW", time.Minute),
		DraftIdleTTL:      v.dur("DRAFT_IDLE_TTL", 2*time.Hour),
		DraftSweepEvery:   v.dur("DRAFT_SWEEP_INTERVAL", time.Minute),
		ReportRateLimit:   v.int("REPORT_RATE_LIMIT", 60),
		ReportRateWindow:  v.dur("REPORT_RATE_WINDOW", time.Minute),
		AuditEnabled:      v.bool("AUDIT_ENABLED", true),

		ReportCacheTTL:    v.dur("REPORT_CACHE_TTL", 24*time.Hour),
		ReportQueue:       v.str("REPORT_QUEUE", "reports"),
		CurrencyCode:      strings.ToUpper(v.str("CURRENCY_CODE", "ZAR")),
		CurrencySymbol:    v.str("CURRENCY_SYMBOL", "R"),
		WorkerConcurrency: v.int("WORKER_CONCURRENCY", 5),
	}

	var missing []error
	for _, req := range []struct{ name, val string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"AUTH_JWT_SECRET", cfg.AuthJWTSecret},
	} {
		if req.val == "" {
			missing = append(missing, fmt.Errorf("%s is required", req.name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the listen address for the configured port.
func (c *Config) HTTPAddr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

// LedgerEnabled reports whether an external ledger service is configured.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerBaseURL != ""
}

// vars reads typed values from the loaded environment. Blank or malformed
// values fall back to the default; negative integers are treated as malformed.
type vars struct{ k *koanf.Koanf }

func (v vars) raw(key string) string { return strings.TrimSpace(v.k.String(key)) }

func (v vars) str(key, def string) string {
	if s := v.raw(key); s != "" {
		return s
	}
	return def
}

func (v vars) list(key string) []string {
	var out []string
	for _, part := range strings.Split(v.raw(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (v vars) dur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v.raw(key)); err == nil {
		return d
	}
	return def
}

func (v vars) int(key string, def int) int {
	if n, err := strconv.Atoi(v.raw(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func (v vars) float(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(v.raw(key), 64); err == nil {
		return f
	}
	return def
}

func (v vars) bool(key string, def bool) bool {
	if b, err := strconv.ParseBool(v.raw(key)); err == nil {
		return b
	}
	return def
}

// LoadForTests runs Load with env applied on top of the process environment
// and restores the previous values afterwards. Empty values unset the key.
func LoadForTests(env map[string]string) (*Config, error) {
	prev := make(map[string]*string, len(env))
	for key, val := range env {
		if old, ok := os.LookupEnv(key); ok {
			prev[key] = &old
		} else {
			prev[key] = nil
		}
		if err := setenv(key, &val); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	var restoreErrs []error
	for key, old := range prev {
		if rerr := setenv(key, old); rerr != nil {
			restoreErrs = append(restoreErrs, fmt.Errorf("restore %s: %w", key, rerr))
		}
	}
	if err != nil {
		return nil, err
	}
	return cfg, errors.Join(restoreErrs...)
}

func setenv(key string, val *string) error {
	if val == nil || *val == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, *val)
}
