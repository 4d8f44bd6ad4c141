// Package events provides domain event definitions for decoupled
// communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"taller_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Appointments Domain Events
// =============================================================================

// AppointmentBooked is published when a workshop appointment is created.
// The notifications module subscribes to send the confirmation email and
// WhatsApp message.
type AppointmentBooked struct {
	BaseEvent
	AppointmentID     uuid.UUID `json:"appointmentId"`
	AppointmentNumber string    `json:"appointmentNumber"`
	CenterCode        string    `json:"centerCode"`
	CenterName        string    `json:"centerName"`
	BrandCode         string    `json:"brandCode"`
	VehiclePlate      string    `json:"vehiclePlate"`
	VehicleModel      string    `json:"vehicleModel,omitempty"`
	CustomerName      string    `json:"customerName"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	CustomerPhone     string    `json:"customerPhone,omitempty"`
	Date              time.Time `json:"date"`
	StartTime         string    `json:"startTime"`
	MaintenanceType   string    `json:"maintenanceType,omitempty"`
	Comments          string    `json:"comments,omitempty"`
}

func (e AppointmentBooked) EventName() string { return "appointments.booked" }

// AppointmentCancelled is published when a customer or operator cancels
// an appointment before service starts.
type AppointmentCancelled struct {
	BaseEvent
	AppointmentID     uuid.UUID `json:"appointmentId"`
	AppointmentNumber string    `json:"appointmentNumber"`
	CenterName        string    `json:"centerName"`
	VehiclePlate      string    `json:"vehiclePlate"`
	CustomerName      string    `json:"customerName"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	CustomerPhone     string    `json:"customerPhone,omitempty"`
	Date              time.Time `json:"date"`
}

func (e AppointmentCancelled) EventName() string { return "appointments.cancelled" }

// AppointmentReminderDue is published by the scheduler when an upcoming
// appointment enters the reminder window.
type AppointmentReminderDue struct {
	BaseEvent
	AppointmentID     uuid.UUID `json:"appointmentId"`
	AppointmentNumber string    `json:"appointmentNumber"`
	CenterName        string    `json:"centerName"`
	CenterAddress     string    `json:"centerAddress,omitempty"`
	VehiclePlate      string    `json:"vehiclePlate"`
	CustomerName      string    `json:"customerName"`
	CustomerEmail     string    `json:"customerEmail,omitempty"`
	CustomerPhone     string    `json:"customerPhone,omitempty"`
	Date              time.Time `json:"date"`
	StartTime         string    `json:"startTime"`
}

func (e AppointmentReminderDue) EventName() string { return "appointments.reminder.due" }

// =============================================================================
// Offer Domain Events
// =============================================================================

// OfferCreated is published when a CRM sales offer is successfully
// registered for an appointment.
type OfferCreated struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	OfferID       string    `json:"offerId"`
	Generic       bool      `json:"generic"`
}

func (e OfferCreated) EventName() string { return "offers.created" }

// OfferFailed is published when offer creation exhausts its submission
// attempt and is flagged for manual review.
type OfferFailed struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	Reason        string    `json:"reason"`
}

func (e OfferFailed) EventName() string { return "offers.failed" }
