// Package offers constructs and submits CRM offers for synchronized
// appointments. One engine handles both customer kinds; the differences
// (buyer resolution, item building, error tolerance) live behind
// SubmissionStrategy.
package offers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/crm"
	"taller_portal_backend/internal/customers"
	"taller_portal_backend/platform/apperr"
	"taller_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// SubmissionStrategy captures how one customer kind is submitted.
type SubmissionStrategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// ResolveBuyer returns the business-partner id the offer goes out
	// under. Runs before any CRM write.
	ResolveBuyer(ctx context.Context, appt *domain.Appointment) (string, error)
	// Populate fills the strategy-specific parts of the quote: structured
	// items for real customers, a free-text service summary for the
	// generic account.
	Populate(ctx context.Context, appt *domain.Appointment, quote *crm.CustomerQuote) error
	// ToleratesErrors reports whether the given severity-3 notes are all
	// benign for this customer kind.
	ToleratesErrors(validationErrors []string) bool
	// PlaceholderOfferID synthesizes an offer id when tolerated errors
	// left the response without one.
	PlaceholderOfferID(appt *domain.Appointment, now time.Time) string
}

// CustomerDirectory is the slice of the customers store the strategies use.
type CustomerDirectory interface {
	GetCustomerByDocument(ctx context.Context, document string) (*customers.Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*customers.Customer, error)
	GetVehicleByPlate(ctx context.Context, plate string) (*customers.Vehicle, error)
}

// VehicleLookup is the CRM vehicle-master query used for buyer enrichment.
type VehicleLookup interface {
	LookupVehicle(ctx context.Context, plate string) (crm.VehicleInfo, error)
}

// ItemSource loads the line items and extras of an appointment.
type ItemSource interface {
	ListProducts(ctx context.Context, appointmentID uuid.UUID) ([]domain.Product, error)
	ListAdditionalServices(ctx context.Context, appointmentID uuid.UUID) ([]domain.AdditionalService, error)
}

// =============================================================================
// Standard strategy
// =============================================================================

type standardStrategy struct {
	directory CustomerDirectory
	vehicles  VehicleLookup
	items     ItemSource
	log       *logger.Logger
}

func (s *standardStrategy) Name() string { return "standard" }

// ResolveBuyer prefers the booking customer's account. When that account is
// missing, or the vehicle's registered owner is a different person, the
// owner's account takes over: a vehicle must not inherit a stranger's
// commercial identity. Finally the CRM vehicle record may carry its own
// customer id, which wins when present and different.
func (s *standardStrategy) ResolveBuyer(ctx context.Context, appt *domain.Appointment) (string, error) {
	var buyer string

	customer, err := s.directory.GetCustomerByDocument(ctx, appt.CustomerDocument)
	if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
		return "", err
	}
	if customer != nil && customer.CRMInternalID != "" {
		buyer = customer.CRMInternalID
	}

	vehicle, err := s.directory.GetVehicleByPlate(ctx, appt.VehiclePlate)
	if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
		return "", err
	}
	if vehicle != nil && vehicle.OwnerID != nil {
		ownerDiffers := customer == nil || *vehicle.OwnerID != customer.ID
		if buyer == "" || ownerDiffers {
			owner, err := s.directory.GetCustomerByID(ctx, *vehicle.OwnerID)
			if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
				return "", err
			}
			if owner != nil && owner.CRMInternalID != "" {
				buyer = owner.CRMInternalID
			}
		}
	}

	if buyer == "" {
		return "", apperr.Precondition(
			fmt.Sprintf("no CRM account for customer document %s or the vehicle owner", appt.CustomerDocument))
	}

	// Enrichment: the vehicle record in the CRM may name a different
	// customer. Lookup failures are logged and ignored; the id already
	// chosen stands.
	info, err := s.vehicles.LookupVehicle(ctx, appt.VehiclePlate)
	if err != nil {
		s.log.Warn("vehicle lookup for buyer enrichment failed",
			"plate", appt.VehiclePlate, "error", err)
		return buyer, nil
	}
	if info.Found && info.ClientID != "" && info.ClientID != buyer {
		s.log.Info("buyer overridden by CRM vehicle record",
			"plate", appt.VehiclePlate, "previous", buyer, "buyer", info.ClientID)
		buyer = info.ClientID
	}
	return buyer, nil
}

func (s *standardStrategy) Populate(ctx context.Context, appt *domain.Appointment, quote *crm.CustomerQuote) error {
	products, err := s.items.ListProducts(ctx, appt.ID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return apperr.Precondition("appointment has no line items, an offer with no items is meaningless")
	}

	quote.Items = make([]crm.QuoteItem, 0, len(products))
	for _, p := range products {
		quote.Items = append(quote.Items, buildItem(p, appt.PackageID))
	}
	if appt.Comments != "" {
		quote.Text = &crm.QuoteText{
			ActionCode:   crm.ActionCreate,
			TextTypeCode: crm.CommentTextTypeCode,
			ContentText:  appt.Comments,
		}
	}
	return nil
}

func (s *standardStrategy) ToleratesErrors([]string) bool { return false }

func (s *standardStrategy) PlaceholderOfferID(*domain.Appointment, time.Time) string { return "" }

func buildItem(p domain.Product, packageID string) crm.QuoteItem {
	positionType := p.PositionType
	if positionType == "" {
		positionType = "P009"
	}

	workQuantity := "0"
	if p.IsService() {
		workQuantity = formatDecimal(p.AltQuantity)
	}

	return crm.QuoteItem{
		ActionCode:         crm.ActionCreate,
		ProcessingTypeCode: crm.ProcessingTypeItem,
		Product: crm.ItemProduct{
			ProductID:         p.ProductID,
			ProductInternalID: p.ProductID,
		},
		ScheduleLine: crm.ScheduleLine{
			Quantity: crm.Quantity{
				Value:    itemQuantity(p.Quantity),
				UnitCode: itemUnitCode(p),
			},
		},
		PositionType:    positionType,
		ServiceKind:     "P",
		WorkQuantity:    workQuantity,
		PackageID:       packageID,
		PackageType:     "Z1",
		TheoreticalTime: formatDecimal(p.WorkTimeValue),
	}
}

// itemQuantity defaults a zero quantity to one unit.
func itemQuantity(q float64) string {
	if q <= 0 {
		return "1.0"
	}
	return formatDecimal(q)
}

// itemUnitCode keeps an explicit unit when the product carries one, then
// falls back by position type: hours for service work, each-unit otherwise.
func itemUnitCode(p domain.Product) string {
	if p.UnitCode != "" {
		return p.UnitCode
	}
	if p.IsService() {
		return "HUR"
	}
	return "EA"
}

// formatDecimal renders a numeric custom field without a trailing decimal
// point when the value is whole, capped at two decimals otherwise.
func formatDecimal(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
