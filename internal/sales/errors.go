package sales

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates an unknown sale id.
var ErrNotFound = errors.New("sales: sale not found")

// errNumberCollision marks a sale number unique violation. Recovered
// internally by regenerating; never surfaced to callers.
var errNumberCollision = errors.New("sales: sale number collision")

// FieldError is one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports missing or malformed required fields. All fields
// are checked before the error is returned.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "sales: validation failed: " + strings.Join(parts, "; ")
}

// MissingReference is one absent or inactive referenced entity.
type MissingReference struct {
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// ReferenceError enumerates every missing or inactive reference at once, not
// just the first.
type ReferenceError struct {
	Refs []MissingReference `json:"refs"`
}

func (e *ReferenceError) Error() string {
	parts := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		parts[i] = fmt.Sprintf("%s %d %s", r.Kind, r.ID, r.Reason)
	}
	return "sales: invalid references: " + strings.Join(parts, "; ")
}

// Shortage is one product without enough stock.
type Shortage struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// StockError enumerates every shortage found for the requested lines.
type StockError struct {
	Shortages []Shortage `json:"shortages"`
}

func (e *StockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s: requested %d, available %d", s.ProductName, s.Requested, s.Available)
	}
	return "sales: insufficient stock: " + strings.Join(parts, "; ")
}

// StateError reports a mutation attempted on a sale whose lifecycle state
// forbids it.
type StateError struct {
	SaleID  int64         `json:"sale_id"`
	Status  SaleStatus    `json:"estado"`
	Payment PaymentStatus `json:"estado_pago"`
}

func (e *StateError) Error() string {
	return fmt.Sprintf("sales: sale %d is not editable in state %s/%s", e.SaleID, e.Status, e.Payment)
}
