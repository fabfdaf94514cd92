// Package inventory owns product stock. All stock mutation goes through the
// Ledger so the non-negative invariant holds under concurrent sales.
package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound indicates an unknown product id.
var ErrProductNotFound = errors.New("inventory: product not found")

// Product is the stock-bearing catalog row. Catalog CRUD lives elsewhere;
// the engine reads it and adjusts Stock through the Ledger only.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Stock     int             `json:"stock"`
	MinStock  int             `json:"min_stock"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
}

// BelowMinimum reports whether the product needs replenishment.
func (p Product) BelowMinimum() bool {
	return p.Stock < p.MinStock
}

// InsufficientStockError reports a reservation that would drive stock
// negative. Available reflects the row state under lock at the time of the
// attempt.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %q (id %d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}
