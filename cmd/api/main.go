package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/lumina-dealer/internal/audit"
	"github.com/noah-isme/lumina-dealer/internal/auth"
	"github.com/noah-isme/lumina-dealer/internal/cache"
	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/config"
	"github.com/noah-isme/lumina-dealer/internal/dealer"
	"github.com/noah-isme/lumina-dealer/internal/health"
	"github.com/noah-isme/lumina-dealer/internal/jobs"
	"github.com/noah-isme/lumina-dealer/internal/ledger"
	"github.com/noah-isme/lumina-dealer/internal/lock"
	"github.com/noah-isme/lumina-dealer/internal/obs"
	"github.com/noah-isme/lumina-dealer/internal/ratelimit"
	"github.com/noah-isme/lumina-dealer/internal/report"
	"github.com/noah-isme/lumina-dealer/internal/resilience"
	"github.com/noah-isme/lumina-dealer/internal/security"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "lumina")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(prometheus.DefaultRegisterer)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "lumina-dealer-api",
			ServiceVersion: version,
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{SlowQuery: cfg.DBSlowQuery}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "lumina-dealer-api"

	pool, err := pgxpool.NewWithConfig(startCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(startCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	db := store.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	var (
		ledgerSource  ledger.Source = db
		ledgerBreaker *resilience.Breaker
	)
	if cfg.LedgerEnabled() {
		ledgerBreaker = resilience.NewBreaker(cfg.LedgerBreakerMinRequests, cfg.LedgerBreakerFailureRatio, cfg.LedgerBreakerOpenFor).
			WithTarget("ledger").
			WithLogger(logger)
		ledgerSource = ledger.HTTPSource{
			BaseURL: cfg.LedgerBaseURL,
			APIKey:  cfg.LedgerAPIKey,
			Client: resilience.HTTPClient{
				Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				Breaker:     ledgerBreaker,
				BaseBackoff: 100 * time.Millisecond,
				MaxAttempts: cfg.LedgerRetryAttempts,
				Jitter:      0.2,
				Timeout:     cfg.LedgerTimeout,
			},
		}
		logger.Info().Str("ledger", cfg.LedgerBaseURL).Msg("using hosted ledger")
	}
	ledgerCache := ledger.CachedSource{
		Next:   ledgerSource,
		Cache:  cache.New(redisClient, cfg.LedgerCacheTTL),
		Logger: logger,
	}

	asynqClient := asynq.NewClientFromRedisClient(redisClient)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	svc, err := dealer.NewService(dealer.ServiceConfig{
		Store:       db,
		Ledger:      &ledger.Fetcher{Source: ledgerCache, Logger: logger},
		LedgerCache: ledgerCache,
		Locker:      lock.Locker{Client: redisClient, Retry: 50 * time.Millisecond, MaxWait: cfg.LockTTL},
		LockTTL:     cfg.LockTTL,
		Queue:       jobs.Enqueuer{Client: asynqClient, Queue: cfg.ReportQueue},
		Reports:     cache.New(redisClient, cfg.ReportCacheTTL),
		Renderer:    report.NewRenderer(report.Currency{Code: cfg.CurrencyCode, Symbol: cfg.CurrencySymbol}),
		DraftTTL:    cfg.DraftIdleTTL,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dealer service")
	}
	go svc.Drafts().Run(ctx, cfg.DraftSweepEvery)
	dealHandler := dealer.NewHandler(dealer.HandlerConfig{Service: svc})

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:    cfg.AuthJWTSecret,
		Issuer:    cfg.AuthJWTIssuer,
		Audience:  cfg.AuthJWTAudience,
		ClockSkew: cfg.AuthClockSkew,
		RoleClaim: cfg.AuthRoleClaim,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := auth.Middleware{Verifier: verifier}

	auditService := &audit.Service{Store: db, Enabled: cfg.AuditEnabled, SamplingRate: 1}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Warn().Err(err).Msg("record audit log") },
	}
	auditHandler := audit.Handler{Store: db}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	previewLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:preview"},
		Key:     ratelimit.KeyByUser("preview"),
		Window:  cfg.PreviewRateWindow,
		Max:     cfg.PreviewRateLimit,
		OnError: limitErr,
	}
	reportStore, err := ratelimit.NewFixedWindow(redisClient, "rl:reports")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise report rate limiter")
	}
	reportLimit := ratelimit.Handler{
		Limiter: reportStore,
		Key:     ratelimit.KeyByUser("reports"),
		Window:  cfg.ReportRateWindow,
		Max:     cfg.ReportRateLimit,
		OnError: limitErr,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Location", "Retry-After", "Idempotent-Replayed", "X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", cfg.AppEnv != "production") {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Checks: readinessChecks(pool, redisClient, ledgerBreaker)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}.Middleware)
		v.Use(authMiddleware.RequireAuth)

		v.Group(func(s chi.Router) {
			s.Use(auth.RequireRole("admin", "sales"))

			s.With(previewLimit.Middleware).Post("/deals/preview", dealHandler.Preview)
			s.Get("/deals", dealHandler.ListDeals)
			s.Get("/deals/{id}", dealHandler.GetDeal)
			s.Group(func(rep chi.Router) {
				rep.Use(reportLimit.Middleware)
				rep.Get("/deals/{id}/breakdown", dealHandler.Breakdown)
				rep.Get("/deals/{id}/settlement", dealHandler.Settlement)
			})

			s.Get("/vehicles", dealHandler.ListVehicles)
			s.Get("/vehicles/{id}/ledger-costs", dealHandler.LedgerCosts)
			s.Get("/sales-reps", dealHandler.ListSalesReps)

			s.Route("/deal-drafts", func(d chi.Router) {
				d.Post("/", dealHandler.OpenDraft)
				d.Get("/{id}", dealHandler.GetDraft)
				d.Patch("/{id}", dealHandler.EditDraft)
				d.Delete("/{id}", dealHandler.DiscardDraft)
				d.With(
					idem.Middleware,
					auditRecorder.Middleware(audit.HTTPConfig{
						Action:          "deal.submit",
						ResourceType:    "deal",
						ResourceIDParam: "id",
						ResourceIDFunc: func(_ *http.Request, h http.Header) string {
							if loc := h.Get("Location"); loc != "" {
								return path.Base(loc)
							}
							return ""
						},
					}),
				).Post("/{id}/submit", dealHandler.SubmitDraft)
			})
		})

		v.With(auth.RequireRole("admin")).Get("/audit-logs", auditHandler.List)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func readinessChecks(db *pgxpool.Pool, rdb *redis.Client, ledgerBreaker *resilience.Breaker) []health.Check {
	checks := []health.Check{
		{
			Name:    "db",
			Timeout: envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			Probe:   db.Ping,
		},
		{
			Name:    "redis",
			Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			Probe:   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}
	if ledgerBreaker != nil {
		checks = append(checks, health.Check{
			Name:     "ledger",
			Optional: true,
			Probe: func(context.Context) error {
				if ledgerBreaker.State() == resilience.Open {
					return resilience.ErrOpenCircuit
				}
				return nil
			},
		})
	}
	return checks
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
