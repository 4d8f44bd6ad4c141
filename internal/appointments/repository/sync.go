package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taller_portal_backend/internal/appointments/domain"

	"github.com/google/uuid"
)

// ListForReconciliation returns the candidates for one ERP sweep: not
// cancelled, plate known, and the confirmed stage reached. When fromDate is
// non-nil only appointments on or after that date are returned (the rolling
// hourly window); the historical backfill passes nil.
//
// A row whose state blob fails to parse is skipped and counted instead of
// aborting the listing, so one corrupt record cannot starve the sweep. The
// caller logs the count.
func (r *Repository) ListForReconciliation(ctx context.Context, fromDate *time.Time, limit int) ([]*domain.Appointment, int, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status != 'cancelled'
		  AND vehicle_plate != ''
		  AND frontend_states IS NOT NULL
		  AND (
		    COALESCE((frontend_states->'confirmed'->>'active')::boolean, FALSE)
		    OR COALESCE((frontend_states->'confirmed'->>'completed')::boolean, FALSE)
		  )`
	args := []any{}
	if fromDate != nil {
		query += ` AND appointment_date >= $1`
		args = append(args, *fromDate)
	}
	query += ` ORDER BY appointment_date, created_at`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments for reconciliation: %w", err)
	}
	defer rows.Close()

	var (
		out     []*domain.Appointment
		skipped int
	)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			if errors.Is(err, ErrCorruptState) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, skipped, rows.Err()
}

// SaveERPSync persists the outcome of one successful per-item reconcile:
// mirrored dates, the advanced frontend state, and the check timestamp, in
// a single statement so an interrupted run never leaves a partial write.
func (r *Repository) SaveERPSync(ctx context.Context, id uuid.UUID, dates domain.ERPDates, state domain.FrontendState, checkedAt time.Time) error {
	blob, err := domain.MarshalState(state)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE appointments
		SET erp_last_service_date = $2,
		    erp_invoice_date = $3,
		    frontend_states = $4,
		    erp_last_check_at = $5,
		    updated_at = NOW()
		WHERE id = $1`,
		id, dates.LastService, dates.Invoice, blob, checkedAt)
	if err != nil {
		return fmt.Errorf("save erp sync: %w", err)
	}
	return nil
}

// TouchERPCheck stamps the last-check timestamp without changing anything
// else. Called when the ERP lookup faulted, so the next trigger does not
// immediately re-query a known-failing plate.
func (r *Repository) TouchERPCheck(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET erp_last_check_at = $2, updated_at = NOW()
		WHERE id = $1`, id, checkedAt)
	if err != nil {
		return fmt.Errorf("touch erp check: %w", err)
	}
	return nil
}
