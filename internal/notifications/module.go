// Package notifications sends appointment emails and WhatsApp messages in
// response to domain events. Domain modules publish events and never touch
// delivery providers or templates.
package notifications

import (
	"context"
	"fmt"
	"taller_portal_backend/internal/email"
	"taller_portal_backend/internal/events"
	"taller_portal_backend/internal/whatsapp"
	"taller_portal_backend/platform/logger"

	qrcode "github.com/skip2/go-qrcode"
)

const displayDateFormat = "02/01/2006"

// WhatsAppSender sends the pre-approved appointment templates.
type WhatsAppSender interface {
	SendAppointmentCreated(ctx context.Context, toPhone string, variables []string) error
	SendAppointmentReminder(ctx context.Context, toPhone string, variables []string) error
	SendAppointmentCancelled(ctx context.Context, toPhone string, variables []string) error
}

// Module subscribes to appointment lifecycle events and fans them out to the
// configured delivery channels. A nil channel is skipped.
type Module struct {
	email    email.Sender
	whatsapp WhatsAppSender
	log      *logger.Logger
}

// NewModule wires the notification handlers and subscribes them on the bus.
// The whatsapp client may be a typed nil when disabled.
func NewModule(bus events.Bus, sender email.Sender, wa *whatsapp.Client, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}

	m := &Module{
		email: sender,
		log:   log,
	}
	if wa != nil {
		m.whatsapp = wa
	}

	bus.Subscribe(events.AppointmentBooked{}.EventName(), m)
	bus.Subscribe(events.AppointmentCancelled{}.EventName(), m)
	bus.Subscribe(events.AppointmentReminderDue{}.EventName(), m)

	return m
}

// Handle dispatches one event to its notification handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AppointmentBooked:
		return m.handleAppointmentBooked(ctx, e)
	case events.AppointmentCancelled:
		return m.handleAppointmentCancelled(ctx, e)
	case events.AppointmentReminderDue:
		return m.handleAppointmentReminderDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleAppointmentBooked(ctx context.Context, e events.AppointmentBooked) error {
	if e.CustomerEmail != "" {
		data := email.AppointmentEmailData{
			CustomerName:      e.CustomerName,
			AppointmentNumber: e.AppointmentNumber,
			Date:              e.Date.Format(displayDateFormat),
			StartTime:         e.StartTime,
			CenterName:        e.CenterName,
			VehiclePlate:      e.VehiclePlate,
			VehicleModel:      e.VehicleModel,
		}

		attachments, err := confirmationAttachments(e.AppointmentNumber)
		if err != nil {
			m.log.Warn("could not build qr attachment, sending without it",
				"appointmentId", e.AppointmentID, "error", err)
			attachments = nil
		}

		if err := m.email.SendAppointmentCreated(ctx, e.CustomerEmail, data, attachments...); err != nil {
			m.log.Error("appointment confirmation email failed",
				"appointmentId", e.AppointmentID, "error", err)
		}
	}

	if m.whatsapp != nil && e.CustomerPhone != "" {
		variables := []string{
			e.CustomerName,
			e.Date.Format(displayDateFormat),
			e.StartTime,
			e.VehicleModel,
			e.VehiclePlate,
			e.CenterName,
			e.MaintenanceType,
			e.Comments,
		}
		if err := m.whatsapp.SendAppointmentCreated(ctx, e.CustomerPhone, variables); err != nil {
			m.log.Error("appointment confirmation whatsapp failed",
				"appointmentId", e.AppointmentID, "error", err)
		}
	}

	return nil
}

func (m *Module) handleAppointmentCancelled(ctx context.Context, e events.AppointmentCancelled) error {
	if e.CustomerEmail != "" {
		data := email.AppointmentEmailData{
			CustomerName:      e.CustomerName,
			AppointmentNumber: e.AppointmentNumber,
			Date:              e.Date.Format(displayDateFormat),
			CenterName:        e.CenterName,
			VehiclePlate:      e.VehiclePlate,
		}
		if err := m.email.SendAppointmentCancelled(ctx, e.CustomerEmail, data); err != nil {
			m.log.Error("appointment cancellation email failed",
				"appointmentId", e.AppointmentID, "error", err)
		}
	}

	if m.whatsapp != nil && e.CustomerPhone != "" {
		variables := []string{
			e.CustomerName,
			e.AppointmentNumber,
			e.Date.Format(displayDateFormat),
			e.CenterName,
		}
		if err := m.whatsapp.SendAppointmentCancelled(ctx, e.CustomerPhone, variables); err != nil {
			m.log.Error("appointment cancellation whatsapp failed",
				"appointmentId", e.AppointmentID, "error", err)
		}
	}

	return nil
}

func (m *Module) handleAppointmentReminderDue(ctx context.Context, e events.AppointmentReminderDue) error {
	var firstErr error

	if e.CustomerEmail != "" {
		data := email.AppointmentEmailData{
			CustomerName:      e.CustomerName,
			AppointmentNumber: e.AppointmentNumber,
			Date:              e.Date.Format(displayDateFormat),
			StartTime:         e.StartTime,
			CenterName:        e.CenterName,
			VehiclePlate:      e.VehiclePlate,
		}
		if err := m.email.SendAppointmentReminder(ctx, e.CustomerEmail, data); err != nil {
			m.log.Error("appointment reminder email failed",
				"appointmentId", e.AppointmentID, "error", err)
			firstErr = err
		}
	}

	if m.whatsapp != nil && e.CustomerPhone != "" {
		variables := []string{
			e.CustomerName,
			e.Date.Format(displayDateFormat),
			e.StartTime,
			e.VehiclePlate,
			e.CenterName,
		}
		if err := m.whatsapp.SendAppointmentReminder(ctx, e.CustomerPhone, variables); err != nil {
			m.log.Error("appointment reminder whatsapp failed",
				"appointmentId", e.AppointmentID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Reminders surface the failure so the task is retried; booking and
	// cancellation sends are best effort.
	return firstErr
}

// confirmationAttachments builds the QR code the customer presents at the
// reception desk.
func confirmationAttachments(appointmentNumber string) ([]email.Attachment, error) {
	png, err := qrcode.Encode(appointmentNumber, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return []email.Attachment{{
		FileName:    fmt.Sprintf("cita-%s.png", appointmentNumber),
		ContentType: "image/png",
		Content:     png,
	}}, nil
}

var _ events.Handler = (*Module)(nil)
