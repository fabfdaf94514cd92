package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esencia-erp/esencia/internal/platform/db"
)

// Repository reads product rows. Writes go through the Ledger inside a
// coordinator transaction, never through here.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)
	ListBelowMinimum(ctx context.Context) ([]Product, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, name, sku, stock, min_stock, unit_price, active`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var unitPrice pgtype.Numeric
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Stock, &p.MinStock, &unitPrice, &p.Active); err != nil {
		return nil, err
	}
	p.UnitPrice = db.Decimal(unitPrice)
	return &p, nil
}

func (r *repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repository) GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	result := make(map[int64]*Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (r *repository) ListBelowMinimum(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active AND stock < min_stock ORDER BY stock ASC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
