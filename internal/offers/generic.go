package offers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/crm"
)

// Validation errors the generic path downgrades to success. Generic bookings
// intentionally reference vehicles that may not exist in the CRM's vehicle
// master, so these exact notes are expected rather than fatal.
var genericBenignErrors = map[string]struct{}{
	"El vehículo no existe.":   {},
	"No se encontró la placa.": {},
}

// Lock contention comes back with varying surrounding text; matched by
// substring.
const lockContentionMarker = "Locking object not possible"

// genericStrategy submits under the shared placeholder account. No
// structured items: the selected services are concatenated into the
// free-text block.
type genericStrategy struct {
	buyerID string
	items   ItemSource
}

func (g *genericStrategy) Name() string { return "generic" }

func (g *genericStrategy) ResolveBuyer(context.Context, *domain.Appointment) (string, error) {
	return g.buyerID, nil
}

func (g *genericStrategy) Populate(ctx context.Context, appt *domain.Appointment, quote *crm.CustomerQuote) error {
	services, err := g.items.ListAdditionalServices(ctx, appt.ID)
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(services)+1)
	for _, s := range services {
		parts = append(parts, s.Name)
	}
	if appt.Comments != "" {
		parts = append(parts, appt.Comments)
	}
	if len(parts) == 0 {
		parts = append(parts, appt.MaintenanceType)
	}

	quote.Text = &crm.QuoteText{
		ActionCode:   crm.ActionCreate,
		TextTypeCode: crm.CommentTextTypeCode,
		ContentText:  strings.Join(parts, " / "),
	}
	return nil
}

// ToleratesErrors accepts the response only when every severity-3 note is
// on the whitelist. A single unexpected note keeps the failure fatal.
func (g *genericStrategy) ToleratesErrors(validationErrors []string) bool {
	if len(validationErrors) == 0 {
		return false
	}
	for _, e := range validationErrors {
		if _, ok := genericBenignErrors[e]; ok {
			continue
		}
		if strings.Contains(e, lockContentionMarker) {
			continue
		}
		return false
	}
	return true
}

func (g *genericStrategy) PlaceholderOfferID(appt *domain.Appointment, now time.Time) string {
	return fmt.Sprintf("WILDCARD-%s-%d", appt.ID, now.Unix())
}
