package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/crm"
	"taller_portal_backend/internal/customers"
	"taller_portal_backend/internal/email"
	"taller_portal_backend/internal/erp"
	"taller_portal_backend/internal/erp/reconcile"
	"taller_portal_backend/internal/events"
	"taller_portal_backend/internal/noshow"
	"taller_portal_backend/internal/notifications"
	"taller_portal_backend/internal/offers"
	"taller_portal_backend/internal/routing"
	"taller_portal_backend/internal/scheduler"
	"taller_portal_backend/internal/whatsapp"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/db"
	"taller_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
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

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	var sender email.Sender = email.NoopSender{}
	if smtp := email.NewSMTPSender(cfg); smtp != nil {
		sender = smtp
	}
	notifications.NewModule(eventBus, sender, whatsapp.NewClient(cfg, log), log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	repo := repository.New(pool)
	erpClient := erp.NewClient(cfg, log)
	crmClient := crm.NewClient(cfg, log)
	resolver := routing.NewResolver(pool)
	directory := customers.New(pool)

	engine := offers.NewEngine(repo, crmClient, resolver, directory, eventBus, cfg, log)
	reconcileJob := reconcile.New(repo, erpClient, client, cfg, log)
	detector := noshow.NewDetector(pool, cfg, log)

	worker, err := scheduler.NewWorker(cfg, engine, repo, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.IsERPEnabled() {
		runner := scheduler.NewReconcileRunner(reconcileJob, cfg, log)
		g.Go(func() error {
			runner.Run(gctx)
			return nil
		})
	} else {
		log.Warn("erp reconciliation disabled")
	}

	noShowRunner := scheduler.NewNoShowRunner(detector, log)
	g.Go(func() error {
		noShowRunner.Run(gctx)
		return nil
	})

	reminderRunner := scheduler.NewReminderRunner(repo, client, cfg, log)
	g.Go(func() error {
		reminderRunner.Run(gctx)
		return nil
	})

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
	}
	log.Info("scheduler shut down")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
