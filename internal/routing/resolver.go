package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver looks up routing attributes by (center code, brand code).
type Resolver struct {
	pool *pgxpool.Pool
}

func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve returns the active mapping for the pair, or (nil, nil) when no
// mapping exists. Not-found is an expected outcome, not an error: the offer
// engine uses it to short-circuit before any network call.
func (r *Resolver) Resolve(ctx context.Context, centerCode, brandCode string) (*Mapping, error) {
	const query = `
		SELECT id, center_code, brand_code, sales_organization_id, sales_office_id,
		       sales_group_id, distribution_channel_code, division_code, active,
		       created_at, updated_at
		FROM center_organization_mappings
		WHERE center_code = $1 AND brand_code = $2 AND active = TRUE`

	var m Mapping
	err := r.pool.QueryRow(ctx, query, centerCode, brandCode).Scan(
		&m.ID, &m.CenterCode, &m.BrandCode, &m.SalesOrganizationID, &m.SalesOfficeID,
		&m.SalesGroupID, &m.DistributionChannelCode, &m.DivisionCode, &m.Active,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve routing mapping for center %s brand %s: %w", centerCode, brandCode, err)
	}
	return &m, nil
}
