// Package main is the entry point for the quotebot fulfillment server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/ai"
	"github.com/jkindrix/quotebot/internal/config"
	"github.com/jkindrix/quotebot/internal/database"
	"github.com/jkindrix/quotebot/internal/fulfillment"
	"github.com/jkindrix/quotebot/internal/handler"
	"github.com/jkindrix/quotebot/internal/leads"
	"github.com/jkindrix/quotebot/internal/logging"
	"github.com/jkindrix/quotebot/internal/metrics"
	"github.com/jkindrix/quotebot/internal/middleware"
	"github.com/jkindrix/quotebot/internal/repository"
	"github.com/jkindrix/quotebot/internal/session"
	"github.com/jkindrix/quotebot/internal/shutdown"
)

const slowQueryThreshold = 100 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting quotebot server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
	)
	missing := cfg.MissingCredentials()
	for _, name := range missing {
		logger.Warn("credential not configured, dependent features will degrade", zap.String("variable", name))
	}

	ctx := context.Background()
	m := metrics.NewMetrics()

	shutdownCoord := shutdown.NewCoordinator(&shutdown.Config{
		Timeout: 30 * time.Second,
	}, logger.Named("shutdown"))

	// Lead sinks: the sheet always, the database mirror when configured.
	sheet := leads.NewSheetSink(&cfg.Sheet, logger.Named("leads"))
	if cfg.Sheet.VerifyOnStart && sheet.Configured() {
		if err := sheet.Verify(ctx); err != nil {
			logger.Warn("lead sheet verification failed", zap.Error(err))
		} else {
			logger.Info("lead sheet verified")
		}
	}
	sinks := []leads.Sink{sheet}

	var healthChecker handler.HealthChecker
	if cfg.Database.Enabled() {
		queryLogger := database.NewQueryLogger(slowQueryThreshold, m, logger.Named("database"))
		db, err := database.New(ctx, &cfg.Database, queryLogger, logger.Named("database"))
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := database.NewMigrator(db.Pool, logger.Named("migrate")).Migrate(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		sinks = append(sinks, repository.NewLeadRepository(db.Pool))
		healthChecker = db

		shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "database", func(context.Context) error {
			db.Close()
			return nil
		})
		logger.Info("lead mirror enabled")
	}

	aiClient := ai.NewClient(&cfg.OpenAI, m, logger.Named("ai"))
	store := newSessionStore(&cfg.Session, m, logger.Named("session"))

	dispatcher := fulfillment.NewDispatcher(fulfillment.Config{
		Completer: aiClient,
		Sink:      leads.NewFanout(m, sinks...),
		Recorder:  m,
	}, logger.Named("fulfillment"))

	r := newRouter(routerConfig{
		CORS:    cfg.CORS,
		Metrics: m,
		Webhook: handler.NewWebhookHandler(handler.WebhookHandlerConfig{
			Store:      store,
			Dispatcher: dispatcher,
			Gauge:      m,
			Logger:     logger.Named("webhook"),
		}),
		Health: handler.NewHealthHandler(handler.HealthHandlerConfig{
			HealthChecker:      healthChecker,
			AIHealthChecker:    aiClient,
			Gate:               shutdownCoord,
			MissingCredentials: missing,
			Logger:             logger.Named("health"),
		}),
		LogLevel: logLevelHandler(cfg, logger),
		Logger:   logger.Logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Completion calls may take most of the OpenAI timeout.
		WriteTimeout: cfg.OpenAI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		store.Run(sweepCtx, cfg.Session.SweepInterval)
	}()

	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "session-sweeper", func(ctx context.Context) error {
		stopSweep()
		select {
		case <-sweepDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// initLogger builds the process logger from the log and environment settings.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
}

// newSessionStore creates the conversation store and reports evictions to m.
func newSessionStore(cfg *config.SessionConfig, m *metrics.Metrics, logger *zap.Logger) *session.Store {
	return session.NewStore(session.Config{
		MaxSessions: cfg.MaxSessions,
		IdleTTL:     cfg.IdleTTL,
		OnEvict:     m.RecordSessionEvicted,
	}, logger)
}

// logLevelHandler exposes runtime level changes outside production only.
func logLevelHandler(cfg *config.Config, logger *logging.Logger) http.Handler {
	if cfg.IsProduction() {
		return nil
	}
	return handler.NewLogLevelHandler(logger, logger.Named("log-level"))
}

type routerConfig struct {
	CORS     config.CORSConfig
	Metrics  *metrics.Metrics
	Webhook  *handler.WebhookHandler
	Health   *handler.HealthHandler
	LogLevel http.Handler
	Logger   *zap.Logger
}

// newRouter assembles the middleware chain and routes.
func newRouter(cfg routerConfig) chi.Router {
	correlation := middleware.NewRequestCorrelation(cfg.Logger)

	r := chi.NewRouter()

	// Order matters: ids first so every later log line carries them.
	r.Use(correlation.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(cors.Handler(corsOptions(cfg.CORS)))

	cfg.Webhook.RegisterRoutes(r)
	cfg.Health.RegisterRoutes(r)
	r.Handle("/metrics", cfg.Metrics.Handler())
	if cfg.LogLevel != nil {
		r.Handle("/debug/log-level", cfg.LogLevel)
	}

	return r
}

func corsOptions(cfg config.CORSConfig) cors.Options {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.CorrelationIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, middleware.CorrelationIDHeader},
		MaxAge:         300,
	}
}
