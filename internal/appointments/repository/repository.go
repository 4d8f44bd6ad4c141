// Package repository persists appointments, their line items, and the
// frontend state blob.
package repository

import (
	"context"
	"errors"
	"fmt"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrCorruptState marks a row whose persisted frontend_states blob no
// longer parses. Batch listings skip such rows; point lookups surface it.
var ErrCorruptState = errors.New("corrupt frontend state")

const appointmentColumns = `
	id, appointment_number, status, appointment_date, start_time, end_time,
	center_code, center_name, customer_document, customer_name, customer_last_name,
	customer_email, customer_phone, vehicle_id, vehicle_plate, vehicle_model,
	brand_code, mileage, maintenance_type, express_service, comments,
	erp_transaction_id, erp_last_service_date, erp_invoice_date, erp_last_check_at,
	package_id, offer_id, offer_created_at, offer_failed, offer_error, offer_attempts,
	frontend_states, no_show, no_show_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var (
		a     domain.Appointment
		state []byte
	)
	err := row.Scan(
		&a.ID, &a.AppointmentNumber, &a.Status, &a.Date, &a.StartTime, &a.EndTime,
		&a.CenterCode, &a.CenterName, &a.CustomerDocument, &a.CustomerName, &a.CustomerLastName,
		&a.CustomerEmail, &a.CustomerPhone, &a.VehicleID, &a.VehiclePlate, &a.VehicleModel,
		&a.BrandCode, &a.Mileage, &a.MaintenanceType, &a.ExpressService, &a.Comments,
		&a.ERPTransactionID, &a.ERPLastServiceDate, &a.ERPInvoiceDate, &a.ERPLastCheckAt,
		&a.PackageID, &a.OfferID, &a.OfferCreated, &a.OfferFailed, &a.OfferError, &a.OfferAttempts,
		&state, &a.NoShow, &a.NoShowAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.FrontendState, err = domain.UnmarshalState(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &a, nil
}

// Create inserts a new appointment with its initial frontend state.
func (r *Repository) Create(ctx context.Context, a *domain.Appointment) error {
	state, err := domain.MarshalState(a.FrontendState)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, appointment_number, status, appointment_date, start_time, end_time,
			center_code, center_name, customer_document, customer_name, customer_last_name,
			customer_email, customer_phone, vehicle_id, vehicle_plate, vehicle_model,
			brand_code, mileage, maintenance_type, express_service, comments,
			package_id, frontend_states
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23
		)
		RETURNING created_at, updated_at`,
		a.ID, a.AppointmentNumber, a.Status, a.Date, a.StartTime, a.EndTime,
		a.CenterCode, a.CenterName, a.CustomerDocument, a.CustomerName, a.CustomerLastName,
		a.CustomerEmail, a.CustomerPhone, a.VehicleID, a.VehiclePlate, a.VehicleModel,
		a.BrandCode, a.Mileage, a.MaintenanceType, a.ExpressService, a.Comments,
		a.PackageID, state,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// GetByID fetches one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// GetByNumber fetches one appointment by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*domain.Appointment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE appointment_number = $1`, number)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, fmt.Errorf("get appointment by number: %w", err)
	}
	return a, nil
}

// List returns appointments, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]*domain.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY appointment_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Cancel marks an appointment cancelled. Cancelled rows are excluded from
// every batch job.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status != $2`, id, domain.StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found or already cancelled")
	}
	return nil
}

// SetERPTransactionID records the transaction id the ERP accepted the
// appointment under. Write-once: a non-empty value is never overwritten.
func (r *Repository) SetERPTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET erp_transaction_id = $2, updated_at = NOW()
		WHERE id = $1 AND (erp_transaction_id IS NULL OR erp_transaction_id = '')`,
		id, transactionID)
	if err != nil {
		return fmt.Errorf("set erp transaction id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("erp transaction id already set")
	}
	return nil
}
