package scheduler

import (
	"context"
	"fmt"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/events"
	"taller_portal_backend/internal/offers"
	"taller_portal_backend/platform/apperr"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine *offers.Engine
	repo   *repository.Repository
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, engine *offers.Engine, repo *repository.Repository, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		engine: engine,
		repo:   repo,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskOfferCreate, w.handleOfferCreate)
	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleOfferCreate runs the offer engine for one appointment. Engine
// failures are already recorded on the appointment and stay terminal until
// an operator retries, so the task must not be retried by the queue.
func (w *Worker) handleOfferCreate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOfferCreatePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := w.engine.CreateOffer(ctx, apptID)
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			// Recorded outcome (precondition, conflict, upstream). Retrying
			// would hit the failure flag anyway.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.Info("offer task completed",
		"appointmentId", apptID,
		"offerId", result.OfferID,
		"synthesized", result.Synthesized,
	)
	return nil
}

// handleAppointmentReminder publishes the reminder event for the
// notification handlers and marks the appointment so the daily scan never
// enqueues it twice.
func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	appt, err := w.repo.GetByID(ctx, apptID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return nil
		}
		return err
	}

	// The booking may have changed between scheduling and delivery.
	if appt.Status == domain.StatusCancelled || appt.NoShow {
		return nil
	}

	if w.bus != nil {
		err = w.bus.PublishSync(ctx, events.AppointmentReminderDue{
			BaseEvent:         events.NewBaseEvent(),
			AppointmentID:     appt.ID,
			AppointmentNumber: appt.AppointmentNumber,
			CenterName:        appt.CenterName,
			VehiclePlate:      appt.VehiclePlate,
			CustomerName:      appt.CustomerName,
			CustomerEmail:     appt.CustomerEmail,
			CustomerPhone:     appt.CustomerPhone,
			Date:              appt.Date,
			StartTime:         appt.StartTime,
		})
		if err != nil {
			return err
		}
	}

	return w.repo.MarkReminderSent(ctx, appt.ID, time.Now())
}
