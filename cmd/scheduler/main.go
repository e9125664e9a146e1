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
	"lead_protection_backend/internal/leads"
	"lead_protection_backend/internal/leads/repository"
	leadsvc "lead_protection_backend/internal/leads/service"
	"lead_protection_backend/internal/notification"
	"lead_protection_backend/internal/scheduler"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/metrics"
	"lead_protection_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store      repository.LeadStore
		dependents leadsvc.DependentCounter
	)
	if cfg.GetDatabaseURL() == "" {
		log.Warn("DATABASE_URL not configured; sweeping the in-memory lead store")
		memory := repository.NewMemoryStore()
		store, dependents = memory, memory
	} else {
		pool, err := connect(ctx, cfg, log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
		store = repository.NewPostgresStore(pool)
		dependents = adapters.NewOpportunityDependents(pool)
	}

	eventBus := events.NewInMemoryBus(log)

	// Worker-side lead wiring (no HTTP handlers required).
	leadsModule := leads.NewModule(store, dependents, eventBus, validator.New(), cfg, log)

	notificationModule := notification.New(email.NewSender(cfg), adapters.NewLeadNotificationRecipients(leadsModule.Service()), cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	g, gctx := errgroup.WithContext(ctx)

	var lock scheduler.Locker
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; sweeping without a lock and sending notices inline")
	} else {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() { _ = client.Close() }()
		notificationModule.SetNoticeQueue(client)

		rdb, err := scheduler.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize redis client", "error", err)
			panic("failed to initialize redis client: " + err.Error())
		}
		defer func() { _ = rdb.Close() }()
		lock = scheduler.NewRedisLock(rdb, "", cfg.GetSweepLockTTL())

		worker, err := scheduler.NewWorker(cfg, eventBus, log)
		if err != nil {
			log.Error("failed to initialize scheduler worker", "error", err)
			panic("failed to initialize scheduler worker: " + err.Error())
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	sweep := scheduler.NewProtectionSweep(leadsModule.Service(), lock, log, cfg.GetSweepInterval())
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})

	if addr := cfg.GetMetricsAddr(); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if busErr := eventBus.Shutdown(shutdownCtx); busErr != nil {
		log.Warn("event handlers still running at shutdown", "error", busErr)
	}
	if err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
