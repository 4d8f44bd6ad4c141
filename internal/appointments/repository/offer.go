package repository

import (
	"context"
	"fmt"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// RecordOfferSuccess persists a created offer: id, creation time, cleared
// failure state, and one more attempt on the monotonic counter.
func (r *Repository) RecordOfferSuccess(ctx context.Context, id uuid.UUID, offerID string, createdAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET offer_id = $2,
		    offer_created_at = $3,
		    offer_failed = FALSE,
		    offer_error = '',
		    offer_attempts = offer_attempts + 1,
		    updated_at = NOW()
		WHERE id = $1`, id, offerID, createdAt)
	if err != nil {
		return fmt.Errorf("record offer success: %w", err)
	}
	return nil
}

// RecordOfferFailure flags the appointment for operator review. The flag
// stays set until ClearOfferFailure. countAttempt is true for submission
// outcomes (transport or validation failures); precondition failures never
// reached the CRM and do not count as attempts.
func (r *Repository) RecordOfferFailure(ctx context.Context, id uuid.UUID, reason string, countAttempt bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET offer_failed = TRUE,
		    offer_error = $2,
		    offer_attempts = offer_attempts + CASE WHEN $3 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1`, id, reason, countAttempt)
	if err != nil {
		return fmt.Errorf("record offer failure: %w", err)
	}
	return nil
}

// ClearOfferFailure resets the failure flag so the engine may run again.
// Only an operator-triggered retry calls this; the attempts counter is
// never reset.
func (r *Repository) ClearOfferFailure(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET offer_failed = FALSE, offer_error = '', updated_at = NOW()
		WHERE id = $1 AND offer_id = ''`, id)
	if err != nil {
		return fmt.Errorf("clear offer failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("appointment already has an offer")
	}
	return nil
}

// ListProducts returns the line items of an appointment in position order.
func (r *Repository) ListProducts(ctx context.Context, appointmentID uuid.UUID) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, product_id, description, position_number,
		       position_type, quantity, alt_quantity, unit_code, work_time_value
		FROM appointment_products
		WHERE appointment_id = $1
		ORDER BY position_number`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.ProductID, &p.Description,
			&p.PositionNumber, &p.PositionType, &p.Quantity, &p.AltQuantity,
			&p.UnitCode, &p.WorkTimeValue); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceProducts swaps the line-item set after the ERP resolves the
// appointment's commercial package.
func (r *Repository) ReplaceProducts(ctx context.Context, appointmentID uuid.UUID, products []domain.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace products: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM appointment_products WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	for _, p := range products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO appointment_products (
				id, appointment_id, product_id, description, position_number,
				position_type, quantity, alt_quantity, unit_code, work_time_value
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, appointmentID, p.ProductID, p.Description, p.PositionNumber,
			p.PositionType, p.Quantity, p.AltQuantity, p.UnitCode, p.WorkTimeValue); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ProductID, err)
		}
	}
	return tx.Commit(ctx)
}

// AddAdditionalServices stores the extras picked during booking.
func (r *Repository) AddAdditionalServices(ctx context.Context, appointmentID uuid.UUID, names []string) error {
	for _, name := range names {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO appointment_additional_services (id, appointment_id, name)
			VALUES ($1, $2, $3)`, uuid.New(), appointmentID, name); err != nil {
			return fmt.Errorf("insert additional service %q: %w", name, err)
		}
	}
	return nil
}

// ListAdditionalServices returns the customer-selected extras used by the
// generic submission path.
func (r *Repository) ListAdditionalServices(ctx context.Context, appointmentID uuid.UUID) ([]domain.AdditionalService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, name
		FROM appointment_additional_services
		WHERE appointment_id = $1
		ORDER BY name`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list additional services: %w", err)
	}
	defer rows.Close()

	var out []domain.AdditionalService
	for rows.Next() {
		var s domain.AdditionalService
		if err := rows.Scan(&s.ID, &s.AppointmentID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan additional service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
