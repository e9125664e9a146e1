package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_protection_backend/internal/adapters"
	"lead_protection_backend/internal/email"
	"lead_protection_backend/internal/events"
	apphttp "lead_protection_backend/internal/http"
	"lead_protection_backend/internal/http/router"
	"lead_protection_backend/internal/leads"
	"lead_protection_backend/internal/leads/repository"
	leadsvc "lead_protection_backend/internal/leads/service"
	"lead_protection_backend/internal/notification"
	"lead_protection_backend/internal/scheduler"
	"lead_protection_backend/migrations"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/db"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		store      repository.LeadStore
		dependents leadsvc.DependentCounter
		health     apphttp.HealthChecker
	)
	if cfg.GetDatabaseURL() == "" {
		log.Warn("DATABASE_URL not configured; using the in-memory lead store")
		memory := repository.NewMemoryStore()
		store, dependents = memory, memory
	} else {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS, log)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}

		pool, err := connect(ctx, cfg, log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
		log.Info("database connection established")

		store = repository.NewPostgresStore(pool)
		dependents = adapters.NewOpportunityDependents(pool)
		health = pool
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(store, dependents, eventBus, val, cfg, log)

	notificationModule := notification.New(email.NewSender(cfg), adapters.NewLeadNotificationRecipients(leadsModule.Service()), cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if queue, closeQueue := initNoticeQueue(cfg, log); queue != nil {
		defer closeQueue()
		notificationModule.SetNoticeQueue(queue)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return eventBus.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// initNoticeQueue returns the asynq client used to queue owner notices. Without
// Redis, notices are delivered inline by the notification module.
func initNoticeQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.NoticeScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; protection notices are sent inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize notice queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
