// Package main is the entry point for the tripflow server.
package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/ai"
	"github.com/unravelhq/tripflow/internal/backend"
	"github.com/unravelhq/tripflow/internal/catalog"
	"github.com/unravelhq/tripflow/internal/clock"
	"github.com/unravelhq/tripflow/internal/config"
	"github.com/unravelhq/tripflow/internal/database"
	"github.com/unravelhq/tripflow/internal/dispatch"
	"github.com/unravelhq/tripflow/internal/domain"
	"github.com/unravelhq/tripflow/internal/flow"
	"github.com/unravelhq/tripflow/internal/gate"
	"github.com/unravelhq/tripflow/internal/handler"
	"github.com/unravelhq/tripflow/internal/logging"
	"github.com/unravelhq/tripflow/internal/metrics"
	"github.com/unravelhq/tripflow/internal/middleware"
	"github.com/unravelhq/tripflow/internal/notify"
	"github.com/unravelhq/tripflow/internal/reconcile"
	"github.com/unravelhq/tripflow/internal/repository"
	"github.com/unravelhq/tripflow/internal/shutdown"
	"github.com/unravelhq/tripflow/internal/transport"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// retentionSweepInterval is how often inactive conversations are swept.
const retentionSweepInterval = 6 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := appLogger.Zap()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting tripflow server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
	)

	ctx := context.Background()
	clk := clock.New()
	m := metrics.New()

	// Storage
	db, err := database.New(ctx, &cfg.Database, logger.Named("database"))
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	migrator := database.NewMigrator(db.Pool, logger.Named("migrate"))
	if err := migrator.MigrateFromFS(ctx, migrationsFS, "migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := database.NewRedis(ctx, &cfg.Redis, logger.Named("redis"))
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	records := repository.NewRecordRepository(db.Pool, m)
	states := repository.NewStateRepository(rdb.Client, cfg.Bot.RetentionWindow())

	// Package catalog
	cat := catalog.Default()
	if cfg.Bot.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.Bot.CatalogPath)
		if err != nil {
			logger.Fatal("failed to load package catalog",
				zap.String("path", cfg.Bot.CatalogPath),
				zap.Error(err),
			)
		}
	}

	// External clients
	connector := transport.NewConnector(&transport.Config{
		BaseURL:    cfg.Transport.BaseURL,
		Token:      cfg.Transport.Token,
		RetryDelay: cfg.Transport.RetryDelay,
	}, logger.Named("transport"))

	var answers flow.Answerer
	if cfg.AnswerEngine.APIKey != "" {
		answers = ai.New(&ai.Config{
			APIKey:  cfg.AnswerEngine.APIKey,
			Model:   cfg.AnswerEngine.Model,
			BaseURL: cfg.AnswerEngine.BaseURL,
			Timeout: cfg.AnswerEngine.Timeout,
		}, clk, logger.Named("ai"))
	} else {
		logger.Warn("answer engine api key not set, questions get the static fallback")
	}

	submitter := backend.New(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, clk, logger.Named("backend"))

	// Conversation flow
	engine := flow.NewEngine(records, states, cat, answers, submitter, connector,
		clk, logger.Named("flow"), m, flow.Config{
			YearsAhead:     cfg.Bot.YearsAhead,
			SupportPhone:   cfg.Bot.SupportPhone,
			SupportEmail:   cfg.Bot.SupportEmail,
			CurrencySymbol: cfg.Bot.CurrencySymbol,
		})

	g := gate.New(gate.Config{
		Cooldown:       cfg.Bot.Cooldown,
		DedupCacheSize: cfg.Bot.DedupCacheSize,
	}, clk, logger.Named("gate"))

	dispatcher := dispatch.New(engine, g, connector, dispatch.DefaultProcessTimeout,
		logger.Named("dispatch"), m)

	// Quote reconciliation
	executive := notify.NewExecutive(connector, cfg.Bot.ExecutivePhone,
		cfg.Bot.CurrencySymbol, logger.Named("notify"))
	reconciler := reconcile.New(records, states, cat, connector, executive,
		clk, logger.Named("reconcile"), m, cfg.Bot.CurrencySymbol)

	// Shutdown coordination
	shutdownCoord := shutdown.NewCoordinator(&shutdown.Config{
		Timeout: 30 * time.Second,
	}, logger.Named("shutdown"))
	readiness := shutdown.NewReadinessProbe(shutdownCoord)

	// HTTP surface
	h := handler.New(handler.Config{
		Dispatcher:   dispatcher,
		Reconciler:   reconciler,
		WebhookToken: cfg.Webhook.Token,
		DBChecker:    db,
		RedisChecker: rdb,
		Readiness:    readiness,
		Logger:       logger.Named("handler"),
		Metrics:      m,
	})

	correlation := middleware.NewRequestCorrelation(logger)

	r := chi.NewRouter()
	r.Use(correlation.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(m.Middleware)
	h.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Retention sweep: drop conversations idle past the retention window,
	// unless a quote callback may still arrive for them.
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(retentionSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runRetentionSweep(ctx, records, states, clk, cfg.Bot.RetentionWindow(), logger, m)
			case <-shutdownCoord.ShutdownCh():
				logger.Debug("retention sweep goroutine stopping")
				return
			}
		}
	}()

	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "retention-sweep", func(ctx context.Context) error {
		select {
		case <-sweepDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "database", func(ctx context.Context) error {
		db.Close()
		return nil
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "redis", func(ctx context.Context) error {
		rdb.Close()
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// runRetentionSweep removes records and state for conversations idle
// longer than the retention window.
func runRetentionSweep(
	ctx context.Context,
	records domain.RecordRepository,
	states domain.StateRepository,
	clk clock.Clock,
	window time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) {
	all, err := records.List(ctx)
	if err != nil {
		logger.Error("retention sweep failed to list records", zap.Error(err))
		return
	}

	expired := domain.SweepInactive(all, clk.NowUTC(), window)
	swept := 0
	for _, userID := range expired {
		if err := records.Delete(ctx, userID); err != nil {
			logger.Error("retention sweep failed to delete record",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		if err := states.Delete(ctx, userID); err != nil {
			logger.Warn("retention sweep failed to delete state",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		swept++
	}

	if swept > 0 {
		if m != nil {
			m.RecordSweep(swept)
		}
		logger.Info("retention sweep complete",
			zap.Int("swept", swept),
			zap.Duration("window", window),
		)
	}
}
