package domain

import (
	"time"

	"github.com/google/uuid"
)

// Appointment status values. Cancelled appointments are excluded from every
// batch job.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment is the central entity. It links the local booking, the ERP
// transaction it was accepted under, and the CRM offer issued for it.
type Appointment struct {
	ID                uuid.UUID
	AppointmentNumber string
	Status            string

	// Scheduling
	Date       time.Time
	StartTime  string
	EndTime    string
	CenterCode string
	CenterName string

	// Customer
	CustomerDocument string
	CustomerName     string
	CustomerLastName string
	CustomerEmail    string
	CustomerPhone    string

	// Vehicle
	VehicleID    *uuid.UUID
	VehiclePlate string
	VehicleModel string
	BrandCode    string
	Mileage      string

	MaintenanceType string
	ExpressService  bool
	Comments        string

	// ERP linkage
	ERPTransactionID   string
	ERPLastServiceDate *time.Time
	ERPInvoiceDate     *time.Time
	ERPLastCheckAt     *time.Time

	// CRM offer linkage
	PackageID     string
	OfferID       string
	OfferCreated  *time.Time
	OfferFailed   bool
	OfferError    string
	OfferAttempts int

	FrontendState FrontendState

	NoShow   bool
	NoShowAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is one line item attached to an appointment after the ERP resolves
// its commercial package. PositionType P001 marks service work; everything
// else is material.
type Product struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	ProductID      string
	Description    string
	PositionNumber int
	PositionType   string
	Quantity       float64
	AltQuantity    float64
	UnitCode       string
	WorkTimeValue  float64
}

// PositionTypeService is the ERP position type for labor line items.
const PositionTypeService = "P001"

// IsService reports whether the line item is labor rather than material.
func (p Product) IsService() bool {
	return p.PositionType == PositionTypeService
}

// AdditionalService is a customer-selected extra (campaign or add-on) used
// by the generic submission path to build the free-text service summary.
type AdditionalService struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Name          string
}

// CanSubmitOffer reports whether the offer engine may run for this
// appointment: never after a success, and never while a recorded failure is
// awaiting an operator retry.
func (a *Appointment) CanSubmitOffer() bool {
	return a.OfferID == "" && !a.OfferFailed
}
