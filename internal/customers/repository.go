// Package customers stores customer accounts and their vehicles. The offer
// engine reads both to resolve the buyer identity a submission goes out
// under.
package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taller_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is a registered account. CRMInternalID is the business-partner
// identifier the CRM knows the account by; empty when the account was never
// synchronized.
type Customer struct {
	ID             uuid.UUID
	DocumentNumber string
	Name           string
	LastName       string
	Email          string
	Phone          string
	CRMInternalID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Vehicle is a registered vehicle. OwnerID links the registered owner, who
// may differ from the customer booking an appointment for the vehicle.
type Vehicle struct {
	ID           uuid.UUID
	LicensePlate string
	BrandCode    string
	Model        string
	OwnerID      *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, document_number, name, last_name, email, phone, crm_internal_id, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.DocumentNumber, &c.Name, &c.LastName, &c.Email, &c.Phone,
		&c.CRMInternalID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByDocument looks up a customer by national document number.
func (r *Repository) GetCustomerByDocument(ctx context.Context, document string) (*Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE document_number = $1`, document)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, fmt.Errorf("get customer by document: %w", err)
	}
	return c, nil
}

// GetCustomerByID looks up a customer by internal id.
func (r *Repository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, fmt.Errorf("get customer by id: %w", err)
	}
	return c, nil
}

// GetVehicleByPlate looks up a vehicle by license plate.
func (r *Repository) GetVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	var v Vehicle
	err := r.pool.QueryRow(ctx, `
		SELECT id, license_plate, brand_code, model, owner_id, created_at, updated_at
		FROM vehicles WHERE license_plate = $1`, plate).
		Scan(&v.ID, &v.LicensePlate, &v.BrandCode, &v.Model, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("vehicle not found")
		}
		return nil, fmt.Errorf("get vehicle by plate: %w", err)
	}
	return &v, nil
}
