// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/status-garden/internal/auth"
	"github.com/bissquit/status-garden/internal/catalog"
	catalogpostgres "github.com/bissquit/status-garden/internal/catalog/postgres"
	"github.com/bissquit/status-garden/internal/config"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/events"
	eventspostgres "github.com/bissquit/status-garden/internal/events/postgres"
	"github.com/bissquit/status-garden/internal/notifications"
	"github.com/bissquit/status-garden/internal/notifications/email"
	notificationspostgres "github.com/bissquit/status-garden/internal/notifications/postgres"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/bissquit/status-garden/internal/pkg/metrics"
	"github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/bissquit/status-garden/internal/statuslog"
	statuslogpostgres "github.com/bissquit/status-garden/internal/statuslog/postgres"
	"github.com/bissquit/status-garden/internal/statuspage"
	"github.com/bissquit/status-garden/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	db                 *pgxpool.Pool
	server             *http.Server
	metricsServer      *http.Server
	backgroundCancel   context.CancelFunc
	notificationWorker *notifications.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())

	app := &App{
		config:           cfg,
		logger:           logger,
		db:               db,
		backgroundCancel: backgroundCancel,
	}

	go app.collectDBMetrics(backgroundCtx)

	router, notificationWorker, err := app.setupRouter(backgroundCtx)
	if err != nil {
		db.Close()
		backgroundCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.notificationWorker = notificationWorker

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.backgroundCancel()

	// Stop notification worker first
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	interval := a.config.Notifications.Worker.StatsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// sweepMaintenanceBoundaries periodically recomputes services whose scheduled
// maintenances started or ended since the previous tick. Each window picks up
// where the last one left off so no boundary is missed between ticks.
func (a *App) sweepMaintenanceBoundaries(ctx context.Context, eventsService *events.Service) {
	interval := a.config.StatusLog.MaintenanceSweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if err := eventsService.SweepMaintenanceBoundaries(ctx, last, now); err != nil {
				slog.Error("maintenance boundary sweep failed", "error", err)
				continue
			}
			last = now
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// NotificationWorker returns the notification worker instance.
// Used in tests to access worker state. Returns nil if notifications disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *notifications.Worker, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	// Status history and projection
	statuslogRepo := statuslogpostgres.NewRepository(a.db)
	eventsRepo := eventspostgres.NewRepository(a.db)
	projector := statuslog.NewProjector(statuslogRepo, eventsRepo)
	aggregator := statuslog.NewAggregator(statuslogRepo, time.UTC, a.config.StatusLog.UptimeCacheTTL)
	reconciler := statuslog.NewReconciler(statuslogRepo)
	go reconciler.Run(ctx, a.config.StatusLog.ReconcileInterval)

	catalogRepo := catalogpostgres.NewRepository(a.db)
	catalogService := catalog.NewService(catalogRepo, projector)
	catalogHandler := catalog.NewHandler(catalogService)

	notificationsRepo := notificationspostgres.NewRepository(a.db)
	notificationsService := notifications.NewService(notificationsRepo, catalogService)
	notificationsHandler := notifications.NewHandler(notificationsService, catalogService)

	var notifier events.UpdateNotifier
	var notificationWorker *notifications.Worker

	slog.Info("notifications configured", "enabled", a.config.Notifications.Enabled)

	if a.config.Notifications.Enabled {
		emailSender, err := email.NewSender(email.Config{
			Enabled:       true,
			SMTPHost:      a.config.Notifications.Email.SMTPHost,
			SMTPPort:      a.config.Notifications.Email.SMTPPort,
			SMTPUser:      a.config.Notifications.Email.SMTPUser,
			SMTPPassword:  a.config.Notifications.Email.SMTPPassword,
			FromAddress:   a.config.Notifications.Email.FromAddress,
			RatePerSecond: a.config.Notifications.Email.RatePerSecond,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create email sender: %w", err)
		}

		renderer, err := notifications.NewRenderer()
		if err != nil {
			return nil, nil, fmt.Errorf("create notification renderer: %w", err)
		}

		notifier = notifications.NewNotifierWithMaxAttempts(
			notificationsRepo,
			catalogService,
			a.config.Notifications.Retry.MaxAttempts,
		)

		workerConfig := notifications.WorkerConfig{
			BatchSize:         a.config.Notifications.Worker.BatchSize,
			PollInterval:      a.config.Notifications.Worker.PollInterval,
			MaxAttempts:       a.config.Notifications.Retry.MaxAttempts,
			InitialBackoff:    a.config.Notifications.Retry.InitialBackoff,
			MaxBackoff:        a.config.Notifications.Retry.MaxBackoff,
			BackoffMultiplier: a.config.Notifications.Retry.BackoffMultiplier,
			NumWorkers:        a.config.Notifications.Worker.NumWorkers,
		}

		notificationWorker = notifications.NewWorker(workerConfig, notificationsRepo, emailSender, renderer)
		notificationWorker.Start(ctx)

		go a.collectQueueMetrics(ctx, notificationsRepo)
	}

	eventsService := events.NewService(eventsRepo, projector, catalogService, notifier)
	eventsHandler := events.NewHandler(eventsService)

	go a.sweepMaintenanceBoundaries(ctx, eventsService)

	// Public read model, invalidated on every status transition
	statusPageService := statuspage.NewService(catalogService, eventsService, projector)
	projector.AddListener(statusPageService)
	statusPageHandler := statuspage.NewHandler(statusPageService, catalogService, aggregator)

	jwtAuth := auth.NewAuthenticator(auth.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	})

	r.Route("/api/v1", func(r chi.Router) {
		statusPageHandler.RegisterPublicRoutes(r)

		r.Route("/orgs/{orgSlug}", func(r chi.Router) {
			statusPageHandler.RegisterOrgRoutes(r)
			notificationsHandler.RegisterPublicRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(jwtAuth))

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleOperator))
				catalogHandler.RegisterOperatorRoutes(r)
				eventsHandler.RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				catalogHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, notificationWorker, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
