package scheduler

import (
	"context"
	"errors"
	"time"

	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/erp/reconcile"
	"taller_portal_backend/internal/noshow"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
)

const (
	defaultReconcileInterval = time.Hour
	defaultNoShowInterval    = time.Hour
	defaultReminderInterval  = 24 * time.Hour
)

// ReconcileRunner drives the hourly ERP reconciliation sweep. A sweep that
// fails outright is retried within the same tick up to the configured limit;
// an overlapping tick is skipped.
type ReconcileRunner struct {
	job      *reconcile.Job
	log      *logger.Logger
	interval time.Duration
	retries  int
}

func NewReconcileRunner(job *reconcile.Job, cfg config.ERPConfig, log *logger.Logger) *ReconcileRunner {
	retries := cfg.GetERPJobRetries()
	if retries < 1 {
		retries = 1
	}
	return &ReconcileRunner{
		job:      job,
		log:      log,
		interval: defaultReconcileInterval,
		retries:  retries,
	}
}

func (r *ReconcileRunner) Run(ctx context.Context) {
	if r == nil || r.job == nil {
		return
	}

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *ReconcileRunner) sweep(ctx context.Context) {
	for attempt := 1; attempt <= r.retries; attempt++ {
		_, err := r.job.Run(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, reconcile.ErrAlreadyRunning) {
			r.log.Warn("erp reconcile tick skipped, previous sweep still running")
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("erp reconcile sweep failed",
			"attempt", attempt, "maxAttempts", r.retries, "error", err)
		if attempt < r.retries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 30 * time.Second):
			}
		}
	}
}

// NoShowRunner drives the hourly no-show detection pass.
type NoShowRunner struct {
	detector *noshow.Detector
	log      *logger.Logger
	interval time.Duration
}

func NewNoShowRunner(detector *noshow.Detector, log *logger.Logger) *NoShowRunner {
	return &NoShowRunner{
		detector: detector,
		log:      log,
		interval: defaultNoShowInterval,
	}
}

func (r *NoShowRunner) Run(ctx context.Context) {
	if r == nil || r.detector == nil {
		return
	}

	r.detect(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.detect(ctx)
		}
	}
}

func (r *NoShowRunner) detect(ctx context.Context) {
	marked, err := r.detector.Run(ctx)
	if err != nil {
		r.log.Warn("no-show detection failed", "error", err)
		return
	}
	if marked > 0 {
		r.log.Info("no-show detection marked appointments", "marked", marked)
	}
}

// ReminderRunner scans daily for upcoming appointments inside the reminder
// lead-time window and enqueues one delivery task per appointment. The
// delivery handler marks the appointment, so a rescan never enqueues twice
// after a successful send.
type ReminderRunner struct {
	repo     *repository.Repository
	client   *Client
	log      *logger.Logger
	interval time.Duration
	leadTime time.Duration
	now      func() time.Time
}

func NewReminderRunner(repo *repository.Repository, client *Client, cfg config.ReminderConfig, log *logger.Logger) *ReminderRunner {
	leadTime := cfg.GetReminderLeadTime()
	if leadTime <= 0 {
		leadTime = 48 * time.Hour
	}
	return &ReminderRunner{
		repo:     repo,
		client:   client,
		log:      log,
		interval: defaultReminderInterval,
		leadTime: leadTime,
		now:      time.Now,
	}
}

func (r *ReminderRunner) Run(ctx context.Context) {
	if r == nil || r.repo == nil {
		return
	}

	r.scan(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *ReminderRunner) scan(ctx context.Context) {
	now := r.now()
	due, err := r.repo.ListDueReminders(ctx, now, now.Add(r.leadTime))
	if err != nil {
		r.log.Warn("reminder scan failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	enqueued := 0
	for _, appt := range due {
		if err := r.client.ScheduleAppointmentReminder(ctx, appt.ID, now); err != nil {
			r.log.Warn("could not enqueue reminder",
				"appointmentId", appt.ID, "error", err)
			continue
		}
		enqueued++
	}
	r.log.Info("reminder scan completed", "due", len(due), "enqueued", enqueued)
}
