package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
)

// UpsertAddress saves the address for its (order, role) pair, updating the existing
// row in place when one is already there. ID and timestamps are filled from the row.
func (r *Repository) UpsertAddress(ctx context.Context, a *domain.Address) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO addresses (order_id, role, street, city, postal_code, state, country, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (order_id, role) DO UPDATE SET
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		a.OrderID, string(a.Role), a.Street, a.City, a.PostalCode, a.State, a.Country, a.Name, a.Phone).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert %s address: %w", a.Role, err)
	}
	return nil
}

func (r *Repository) GetOrderAddress(ctx context.Context, orderID int64, role domain.AddressRole) (*domain.Address, error) {
	var a domain.Address
	var stored string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, role, street, city, postal_code, state, country, name, phone, created_at, updated_at
		FROM addresses WHERE order_id = $1 AND role = $2`, orderID, string(role)).
		Scan(&a.ID, &a.OrderID, &stored, &a.Street, &a.City, &a.PostalCode, &a.State, &a.Country,
			&a.Name, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s address of order %d: %w", role, orderID, ErrAddressNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s address: %w", role, err)
	}
	if a.Role, err = domain.ParseAddressRole(stored); err != nil {
		return nil, err
	}
	return &a, nil
}
