package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads customers and payment methods.
type Repository interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetPaymentMethod(ctx context.Context, id int64) (*PaymentMethod, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	query := `
		SELECT id, name, street, street_number, postal_code, city, province,
		       COALESCE(phone, ''), active
		FROM customers
		WHERE id = $1
	`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Street, &c.StreetNumber, &c.PostalCode,
		&c.City, &c.Province, &c.Phone, &c.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetPaymentMethod(ctx context.Context, id int64) (*PaymentMethod, error) {
	query := `
		SELECT id, name, requires_reference, active
		FROM payment_methods
		WHERE id = $1
	`
	var pm PaymentMethod
	err := r.pool.QueryRow(ctx, query, id).Scan(&pm.ID, &pm.Name, &pm.RequiresReference, &pm.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &pm, nil
}
