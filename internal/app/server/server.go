package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"hrims/internal/client/backendapi"
	"hrims/internal/domain/audit"
	"hrims/internal/domain/auth"
	"hrims/internal/domain/directory"
	"hrims/internal/domain/leave"
	"hrims/internal/domain/notifications"
	"hrims/internal/domain/reports"
	"hrims/internal/domain/retention"
	"hrims/internal/domain/role"
	"hrims/internal/platform/config"
	"hrims/internal/platform/crypto"
	"hrims/internal/platform/db"
	"hrims/internal/platform/email"
	"hrims/internal/platform/events"
	"hrims/internal/platform/jobs"
	"hrims/internal/platform/logging"
	"hrims/internal/platform/metrics"
	"hrims/internal/platform/querier"
	audithandler "hrims/internal/transport/http/handlers/audit"
	authhandler "hrims/internal/transport/http/handlers/auth"
	employeeshandler "hrims/internal/transport/http/handlers/employees"
	leavehandler "hrims/internal/transport/http/handlers/leave"
	notificationshandler "hrims/internal/transport/http/handlers/notifications"
	reportshandler "hrims/internal/transport/http/handlers/reports"
	sessionhandler "hrims/internal/transport/http/handlers/session"
	"hrims/internal/transport/http/middleware"
)

type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Router   http.Handler
	Log      zerolog.Logger
	Jobs     *jobs.Service
	Sessions *role.SessionManager

	events *events.Publisher
	cancel context.CancelFunc
}

// New wires every component from cfg. Background jobs start immediately and
// stop on Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg)
	app := &App{Config: cfg, Log: logger}

	// q stays a nil interface without a database so optional stores are
	// skipped instead of wrapping a nil pool.
	var q querier.Querier
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		q = pool
		if cfg.RunMigrations {
			if _, err := db.Migrate(ctx, pool, cfg.MigrationsDir, logger.With().Str("component", "migrate").Logger()); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		if cfg.RunSeed {
			if err := db.Seed(ctx, pool, cfg); err != nil {
				pool.Close()
				return nil, fmt.Errorf("seed: %w", err)
			}
		}
	}

	collector := metrics.New()
	jobService := jobs.New(q, logger.With().Str("component", "jobs").Logger(), 256)
	app.Jobs = jobService

	var (
		source  directory.Source
		backend leave.Backend
	)
	if cfg.UsesPostgres() {
		source = directory.NewStore(q)
		store := leave.NewStore(q)
		backend = store
		jobService.Every(jobs.JobCreditProvision, cfg.CreditProvisionInterval, func(ctx context.Context) (any, error) {
			return leave.ProvisionCredits(ctx, store, time.Now().Year(), logger)
		})
	} else {
		client, err := backendapi.New(cfg.BackendAPIURL, cfg.BackendAPIToken, cfg.BackendTimeout, logger.With().Str("component", "backendapi").Logger())
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("backend client: %w", err)
		}
		source = client
		backend = client
	}

	var sink audit.Sink = audit.NewLogSink(logger.With().Str("component", "audit").Logger())
	var auditReader audithandler.Reader
	if q != nil {
		auditStore := audit.NewStore(q)
		sink = auditStore
		auditReader = auditStore
	}
	auditService := audit.NewService(sink, jobService, logger, collector)

	publisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, logger.With().Str("component", "events").Logger())
	if err != nil {
		// Notifications still reach the inbox and email without NATS.
		logger.Warn().Err(err).Msg("nats unavailable, events disabled")
	}
	app.events = publisher

	notifyOpts := []notifications.Option{
		notifications.WithMailer(email.New(cfg), cfg.EmailFrom),
		notifications.WithJobs(jobService),
	}
	if publisher != nil {
		notifyOpts = append(notifyOpts, notifications.WithPublisher(publisher))
	}
	if q != nil {
		notifyOpts = append(notifyOpts, notifications.WithStore(notifications.NewStore(q)))
	}
	notifier := notifications.New(logger.With().Str("component", "notifications").Logger(), notifyOpts...)

	resolver := role.NewResolver(logger.With().Str("component", "roles").Logger(), collector)
	sessions := role.NewSessionManager(source, resolver, logger,
		role.WithLoadTimeout(cfg.RoleLoadTimeout),
		role.WithTTL(cfg.SessionTTL),
	)
	app.Sessions = sessions

	leaveService := leave.NewService(backend, auditService, collector, logger, leave.WithNotifier(notifier))

	var runs reports.JobRunStore
	if q != nil {
		runs = reports.NewStore(q)
	}
	reportService := reports.NewService(leaveService, backend, runs, logger)

	var idempotency middleware.IdempotencyChecker
	if q != nil {
		idempotency = middleware.NewIdempotencyStore(q)
		policies := []retention.Policy{
			{Category: retention.CategoryAudit, Days: cfg.AuditRetentionDays},
			{Category: retention.CategoryNotifications, Days: cfg.NotificationRetentionDays},
			{Category: retention.CategoryIdempotency, Days: cfg.IdempotencyRetentionDays},
			{Category: retention.CategoryJobRuns, Days: cfg.JobRunRetentionDays},
		}
		jobService.Every(jobs.JobRetention, cfg.RetentionInterval, func(ctx context.Context) (any, error) {
			return retention.Run(ctx, q, policies, time.Now(), logger)
		})
	}

	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		app.Close()
		return nil, err
	}
	var authService *auth.Service
	if q != nil {
		authService = auth.NewService(auth.NewStore(q), cfg.JWTSecret, cfg.TokenTTL, logger, auth.WithSealer(sealer))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.Logger(logger, collector))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(tokenVerifier{secret: cfg.JWTSecret}))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if app.DB == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Method(http.MethodGet, "/metrics", collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		var authHandler *authhandler.Handler
		if authService != nil {
			authHandler = authhandler.NewHandler(authService, auditService, logger)
			authHandler.RegisterPublicRoutes(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions))

			if authHandler != nil {
				authHandler.RegisterRoutes(r)
			}
			sessionhandler.NewHandler(sessions, logger).RegisterRoutes(r)
			employeeshandler.NewHandler(source, logger).RegisterRoutes(r)
			leavehandler.NewHandler(leaveService, idempotency, logger).RegisterRoutes(r)
			reportshandler.NewHandler(reportService, logger).RegisterRoutes(r)
			notificationshandler.NewHandler(notifier, logger).RegisterRoutes(r)
			audithandler.NewHandler(auditReader, logger).RegisterRoutes(r)
		})
	})

	app.Router = router

	jobCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	jobService.Start(jobCtx)

	return app, nil
}

// tokenVerifier checks bearer tokens without a database, so tokens issued
// by the upstream system with the shared secret work in REST mode too.
type tokenVerifier struct {
	secret string
}

func (v tokenVerifier) Verify(token string) (*auth.Claims, error) {
	return auth.ParseToken(v.secret, token)
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.events.Close()
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run loads configuration, serves until SIGINT or SIGTERM, then drains.
func Run() {
	cfg := config.Load()
	logger := logging.New(cfg)

	app, err := New(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("leave_backend", cfg.LeaveBackend).Msg("HRIMS server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
}
