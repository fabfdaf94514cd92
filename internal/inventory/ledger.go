package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the slice of pgx.Tx the ledger needs. Both reserve and release
// must run on the caller's transaction so an aborted unit of work reverses
// them.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger adjusts on-hand quantities. Reserve locks the product row, so two
// concurrent reservations against the last unit serialize and only one
// succeeds.
type Ledger struct {
	tx dbtx
}

// NewLedger binds a ledger to the given transaction.
func NewLedger(tx dbtx) *Ledger {
	return &Ledger{tx: tx}
}

// Reserve decrements stock by qty. Returns InsufficientStockError when the
// locked row holds less than qty.
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: reserve quantity must be positive, got %d", qty)
	}

	var name string
	var stock int
	err := l.tx.QueryRow(ctx,
		`SELECT name, stock FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("inventory: lock product %d: %w", productID, err)
	}

	if stock < qty {
		return &InsufficientStockError{ProductID: productID, ProductName: name, Requested: qty, Available: stock}
	}

	_, err = l.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("inventory: reserve product %d: %w", productID, err)
	}
	return nil
}

// Release increments stock by qty unconditionally. Used to undo a
// reservation or to restore stock when a sale is deleted.
func (l *Ledger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: release quantity must be positive, got %d", qty)
	}

	tag, err := l.tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("inventory: release product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
