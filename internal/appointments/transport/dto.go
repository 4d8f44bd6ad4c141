package transport

import (
	"time"

	"taller_portal_backend/internal/appointments/domain"

	"github.com/google/uuid"
)

// CreateAppointmentRequest is the request body for booking an appointment.
type CreateAppointmentRequest struct {
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
	CenterCode string `json:"centerCode" validate:"required,max=10"`
	CenterName string `json:"centerName,omitempty" validate:"max=200"`

	CustomerDocument string `json:"customerDocument" validate:"required,document"`
	CustomerName     string `json:"customerName" validate:"required,max=100"`
	CustomerLastName string `json:"customerLastName,omitempty" validate:"max=100"`
	CustomerEmail    string `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerPhone    string `json:"customerPhone,omitempty" validate:"max=20"`

	VehiclePlate string `json:"vehiclePlate" validate:"required,plate"`
	VehicleModel string `json:"vehicleModel,omitempty" validate:"max=100"`
	BrandCode    string `json:"brandCode" validate:"required,max=10"`
	Mileage      string `json:"mileage,omitempty" validate:"max=10"`

	MaintenanceType string `json:"maintenanceType,omitempty" validate:"max=200"`
	ExpressService  bool   `json:"expressService"`
	Comments        string `json:"comments,omitempty" validate:"max=2000"`
	PackageID       string `json:"packageId,omitempty" validate:"max=40"`

	AdditionalServices []string `json:"additionalServices,omitempty" validate:"max=20,dive,max=200"`
}

// ListAppointmentsRequest is the query for listing appointments.
type ListAppointmentsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// AppointmentResponse is the response body for an appointment.
type AppointmentResponse struct {
	ID                uuid.UUID            `json:"id"`
	AppointmentNumber string               `json:"appointmentNumber"`
	Status            string               `json:"status"`
	Date              string               `json:"date"`
	StartTime         string               `json:"startTime"`
	EndTime           string               `json:"endTime,omitempty"`
	CenterCode        string               `json:"centerCode"`
	CenterName        string               `json:"centerName,omitempty"`
	CustomerDocument  string               `json:"customerDocument"`
	CustomerName      string               `json:"customerName"`
	CustomerLastName  string               `json:"customerLastName,omitempty"`
	CustomerEmail     string               `json:"customerEmail,omitempty"`
	CustomerPhone     string               `json:"customerPhone,omitempty"`
	VehiclePlate      string               `json:"vehiclePlate"`
	VehicleModel      string               `json:"vehicleModel,omitempty"`
	BrandCode         string               `json:"brandCode"`
	MaintenanceType   string               `json:"maintenanceType,omitempty"`
	ExpressService    bool                 `json:"expressService"`
	Comments          string               `json:"comments,omitempty"`
	ERPTransactionID  string               `json:"erpTransactionId,omitempty"`
	OfferID           string               `json:"offerId,omitempty"`
	OfferFailed       bool                 `json:"offerFailed"`
	OfferError        string               `json:"offerError,omitempty"`
	NoShow            bool                 `json:"noShow"`
	FrontendState     domain.FrontendState `json:"frontendState"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// AppointmentListResponse is the envelope for listing appointments.
type AppointmentListResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// FromDomain maps the entity to its API shape.
func FromDomain(a *domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		AppointmentNumber: a.AppointmentNumber,
		Status:            a.Status,
		Date:              a.Date.Format("2006-01-02"),
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		CenterCode:        a.CenterCode,
		CenterName:        a.CenterName,
		CustomerDocument:  a.CustomerDocument,
		CustomerName:      a.CustomerName,
		CustomerLastName:  a.CustomerLastName,
		CustomerEmail:     a.CustomerEmail,
		CustomerPhone:     a.CustomerPhone,
		VehiclePlate:      a.VehiclePlate,
		VehicleModel:      a.VehicleModel,
		BrandCode:         a.BrandCode,
		MaintenanceType:   a.MaintenanceType,
		ExpressService:    a.ExpressService,
		Comments:          a.Comments,
		ERPTransactionID:  a.ERPTransactionID,
		OfferID:           a.OfferID,
		OfferFailed:       a.OfferFailed,
		OfferError:        a.OfferError,
		NoShow:            a.NoShow,
		FrontendState:     a.FrontendState,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
