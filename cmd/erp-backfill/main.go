// Command erp-backfill runs one historical ERP reconciliation sweep over all
// non-cancelled appointments regardless of their date. Used to repair state
// after ERP outages or to seed a freshly migrated environment.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/erp"
	"taller_portal_backend/internal/erp/reconcile"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/db"
	"taller_portal_backend/platform/logger"
)

func main() {
	limit := flag.Int("limit", 0, "maximum number of appointments to process (0 = no limit)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsERPEnabled() {
		log.Error("erp integration is not configured")
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)
	erpClient := erp.NewClient(cfg, log)
	job := reconcile.New(repo, erpClient, nil, cfg, log)

	log.Info("starting historical erp backfill", "limit", *limit)
	start := time.Now()

	summary, err := job.RunHistorical(ctx, *limit)
	if err != nil {
		log.Error("historical backfill failed", "error", err)
		os.Exit(1)
	}

	log.Info("historical backfill complete",
		"total", summary.Total,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"elapsed", time.Since(start).Round(time.Second),
	)
}
