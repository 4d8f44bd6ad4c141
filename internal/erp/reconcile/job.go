// Package reconcile runs the periodic sweep that mirrors ERP service and
// invoice dates onto local appointments and advances their frontend state.
package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/erp"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is returned when a sweep is requested while a prior
// sweep of the same job is still active.
var ErrAlreadyRunning = errors.New("reconcile: sweep already running")

// DatesLookup is the slice of the ERP client the job needs.
type DatesLookup interface {
	LookupServiceDates(ctx context.Context, plate string) (erp.ServiceDates, error)
}

// Store is the slice of the appointment repository the job needs. The int
// returned by ListForReconciliation counts rows skipped for a corrupt state
// blob.
type Store interface {
	ListForReconciliation(ctx context.Context, fromDate *time.Time, limit int) ([]*domain.Appointment, int, error)
	SaveERPSync(ctx context.Context, id uuid.UUID, dates domain.ERPDates, state domain.FrontendState, checkedAt time.Time) error
	TouchERPCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time) error
}

// OfferEnqueuer defers offer creation to the task queue once an appointment
// is synchronized and carries the required identifiers. Optional.
type OfferEnqueuer interface {
	EnqueueOfferCreate(ctx context.Context, appointmentID uuid.UUID) error
}

// Summary is the outcome of one sweep.
type Summary struct {
	Total   int
	Updated int
	Failed  int
}

// Job processes candidates strictly sequentially with an inter-item
// throttle. The legacy ERP cannot take parallel fan-out.
type Job struct {
	store   Store
	erp     DatesLookup
	offers  OfferEnqueuer
	limiter *rate.Limiter
	log     *logger.Logger
	now     func() time.Time
	running atomic.Bool
}

func New(store Store, lookup DatesLookup, offers OfferEnqueuer, cfg config.ERPConfig, log *logger.Logger) *Job {
	return &Job{
		store:   store,
		erp:     lookup,
		offers:  offers,
		limiter: rate.NewLimiter(rate.Every(cfg.GetERPThrottleInterval()), 1),
		log:     log,
		now:     time.Now,
	}
}

// Run executes the rolling sweep over appointments dated today or later.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	today := startOfDay(j.now())
	return j.sweep(ctx, &today, 0)
}

// RunHistorical executes a one-shot sweep over all non-cancelled
// appointments regardless of date. limit 0 means no limit.
func (j *Job) RunHistorical(ctx context.Context, limit int) (Summary, error) {
	return j.sweep(ctx, nil, limit)
}

func (j *Job) sweep(ctx context.Context, fromDate *time.Time, limit int) (Summary, error) {
	if !j.running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRunning
	}
	defer j.running.Store(false)

	start := j.now()
	candidates, corrupt, err := j.store.ListForReconciliation(ctx, fromDate, limit)
	if err != nil {
		return Summary{}, err
	}
	if corrupt > 0 {
		j.log.Warn("erp reconcile skipped rows with unreadable state", "skipped", corrupt)
	}

	summary := Summary{Total: len(candidates)}
	for i, appt := range candidates {
		if i > 0 {
			if err := j.limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		if err := j.processOne(ctx, appt); err != nil {
			summary.Failed++
			j.log.Warn("erp reconcile item failed",
				"appointmentId", appt.ID,
				"plate", appt.VehiclePlate,
				"error", err,
			)
			continue
		}
		summary.Updated++
	}

	j.log.JobSummary("erp-reconcile", summary.Total, summary.Updated, summary.Failed, time.Since(start))
	return summary, nil
}

func (j *Job) processOne(ctx context.Context, appt *domain.Appointment) error {
	now := j.now()

	dates, err := j.erp.LookupServiceDates(ctx, appt.VehiclePlate)
	if err != nil {
		// Stamp the check anyway so the next trigger does not hammer a
		// known-failing plate.
		if touchErr := j.store.TouchERPCheck(ctx, appt.ID, now); touchErr != nil {
			j.log.Warn("erp reconcile could not stamp failed check",
				"appointmentId", appt.ID, "error", touchErr)
		}
		return err
	}

	erpDates := domain.ERPDates{LastService: dates.LastService, Invoice: dates.Invoice}
	state := domain.Advance(appt.FrontendState, appt.Date, erpDates, now)
	if err := j.store.SaveERPSync(ctx, appt.ID, erpDates, state, now); err != nil {
		return err
	}

	j.maybeEnqueueOffer(ctx, appt)
	return nil
}

// maybeEnqueueOffer defers offer creation for appointments that have never
// been tried and carry both identifiers the engine requires. Enqueue
// failures are logged, never propagated: the next sweep tries again.
func (j *Job) maybeEnqueueOffer(ctx context.Context, appt *domain.Appointment) {
	if j.offers == nil {
		return
	}
	if !appt.CanSubmitOffer() || appt.OfferAttempts > 0 {
		return
	}
	if appt.ERPTransactionID == "" || appt.PackageID == "" {
		return
	}
	if err := j.offers.EnqueueOfferCreate(ctx, appt.ID); err != nil {
		j.log.Warn("could not enqueue offer creation",
			"appointmentId", appt.ID, "error", err)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
