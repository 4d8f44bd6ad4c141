package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/appointments/transport"
	"taller_portal_backend/internal/events"
	"taller_portal_backend/platform/apperr"
	"taller_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const dateFormat = "2006-01-02"

// OfferEnqueuer schedules an asynchronous offer-creation task. The scheduler
// module implements it; a nil enqueuer disables the retry endpoint's
// re-submission (the flag is still cleared for the next batch pass).
type OfferEnqueuer interface {
	EnqueueOfferCreate(ctx context.Context, appointmentID uuid.UUID) error
}

// Service provides business logic for appointments.
type Service struct {
	repo     *repository.Repository
	bus      events.Bus
	enqueuer OfferEnqueuer
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new appointments service.
func New(repo *repository.Repository, bus events.Bus, enqueuer OfferEnqueuer, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		bus:      bus,
		enqueuer: enqueuer,
		log:      log,
		now:      time.Now,
	}
}

// Create books an appointment: generates the public appointment number,
// seeds the confirmed frontend state, and publishes AppointmentBooked for
// the notification handlers.
func (s *Service) Create(ctx context.Context, req transport.CreateAppointmentRequest) (*transport.AppointmentResponse, error) {
	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		return nil, apperr.Precondition("date must be formatted as YYYY-MM-DD")
	}

	now := s.now()
	appt := &domain.Appointment{
		ID:                uuid.New(),
		AppointmentNumber: newAppointmentNumber(date),
		Status:            domain.StatusConfirmed,
		Date:              date,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		CenterCode:        req.CenterCode,
		CenterName:        req.CenterName,
		CustomerDocument:  req.CustomerDocument,
		CustomerName:      req.CustomerName,
		CustomerLastName:  req.CustomerLastName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		VehiclePlate:      req.VehiclePlate,
		VehicleModel:      req.VehicleModel,
		BrandCode:         req.BrandCode,
		Mileage:           req.Mileage,
		MaintenanceType:   req.MaintenanceType,
		ExpressService:    req.ExpressService,
		Comments:          req.Comments,
		PackageID:         req.PackageID,
		FrontendState:     domain.NewConfirmedState(now),
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}
	if len(req.AdditionalServices) > 0 {
		if err := s.repo.AddAdditionalServices(ctx, appt.ID, req.AdditionalServices); err != nil {
			return nil, err
		}
	}

	s.log.Info("appointment booked",
		"appointmentId", appt.ID,
		"number", appt.AppointmentNumber,
		"center", appt.CenterCode,
		"plate", appt.VehiclePlate,
	)

	s.bus.Publish(ctx, events.AppointmentBooked{
		BaseEvent:         events.NewBaseEvent(),
		AppointmentID:     appt.ID,
		AppointmentNumber: appt.AppointmentNumber,
		CenterCode:        appt.CenterCode,
		CenterName:        appt.CenterName,
		BrandCode:         appt.BrandCode,
		VehiclePlate:      appt.VehiclePlate,
		VehicleModel:      appt.VehicleModel,
		CustomerName:      customerFullName(appt),
		CustomerEmail:     appt.CustomerEmail,
		CustomerPhone:     appt.CustomerPhone,
		Date:              appt.Date,
		StartTime:         appt.StartTime,
		MaintenanceType:   appt.MaintenanceType,
		Comments:          appt.Comments,
	})

	resp := transport.FromDomain(appt)
	return &resp, nil
}

// GetByID returns one appointment.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*transport.AppointmentResponse, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := transport.FromDomain(appt)
	return &resp, nil
}

// List returns appointments filtered by status.
func (s *Service) List(ctx context.Context, req transport.ListAppointmentsRequest) (*transport.AppointmentListResponse, error) {
	items, err := s.repo.List(ctx, req.Status, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	out := make([]transport.AppointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, transport.FromDomain(a))
	}
	return &transport.AppointmentListResponse{
		Items:  out,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

// Cancel marks the appointment cancelled and publishes the cancellation
// event. Cancelled appointments drop out of every batch job.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}

	s.log.Info("appointment cancelled", "appointmentId", id, "number", appt.AppointmentNumber)

	s.bus.Publish(ctx, events.AppointmentCancelled{
		BaseEvent:         events.NewBaseEvent(),
		AppointmentID:     appt.ID,
		AppointmentNumber: appt.AppointmentNumber,
		CenterName:        appt.CenterName,
		VehiclePlate:      appt.VehiclePlate,
		CustomerName:      customerFullName(appt),
		CustomerEmail:     appt.CustomerEmail,
		CustomerPhone:     appt.CustomerPhone,
		Date:              appt.Date,
	})
	return nil
}

// RetryOffer clears a recorded offer failure and re-enqueues the creation
// task. The attempts counter keeps counting across retries.
func (s *Service) RetryOffer(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !appt.OfferFailed {
		return apperr.Conflict("appointment has no recorded offer failure")
	}

	if err := s.repo.ClearOfferFailure(ctx, id); err != nil {
		return err
	}

	s.log.Info("offer retry requested",
		"appointmentId", id,
		"previousError", appt.OfferError,
		"attempts", appt.OfferAttempts,
	)

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueOfferCreate(ctx, id); err != nil {
			return fmt.Errorf("enqueue offer retry: %w", err)
		}
	}
	return nil
}

func customerFullName(a *domain.Appointment) string {
	if a.CustomerLastName == "" {
		return a.CustomerName
	}
	return a.CustomerName + " " + a.CustomerLastName
}

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newAppointmentNumber builds the public booking reference, e.g.
// CITA-20260310-4K7QZ.
func newAppointmentNumber(date time.Time) string {
	suffix := make([]byte, 5)
	_, _ = rand.Read(suffix)
	for i := range suffix {
		suffix[i] = numberAlphabet[int(suffix[i])%len(numberAlphabet)]
	}
	return fmt.Sprintf("CITA-%s-%s", date.Format("20060102"), suffix)
}
