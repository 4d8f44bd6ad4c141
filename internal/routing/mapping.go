// Package routing resolves the organizational codes the CRM needs to place
// an offer. The mapping table is reference data: looked up, never mutated.
package routing

import (
	"time"

	"github.com/google/uuid"
)

// Mapping holds the sales routing attributes for one (center, brand) pair.
type Mapping struct {
	ID                      uuid.UUID
	CenterCode              string
	BrandCode               string
	SalesOrganizationID     string
	SalesOfficeID           string
	SalesGroupID            string
	DistributionChannelCode string
	DivisionCode            string
	Active                  bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
