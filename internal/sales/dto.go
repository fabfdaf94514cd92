package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest is one requested line item. UnitPrice may be omitted to use
// the product's catalog price.
type LineRequest struct {
	ProductID   int64            `json:"product_id" validate:"required,gt=0"`
	Quantity    int              `json:"cantidad" validate:"required,gte=1"`
	UnitPrice   *decimal.Decimal `json:"precio_unitario,omitempty"`
	DiscountPct decimal.Decimal  `json:"descuento_pct"`
}

// CreateSaleRequest is the input for Service.Create.
type CreateSaleRequest struct {
	CustomerID       int64           `json:"customer_id" validate:"required,gt=0"`
	PaymentMethodID  int64           `json:"payment_method_id" validate:"required,gt=0"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	ShippingCost     decimal.Decimal `json:"costo_envio"`
	Notes            *string         `json:"notes,omitempty"`
	Date             *time.Time      `json:"fecha,omitempty"`
	Lines            []LineRequest   `json:"lines" validate:"required,min=1,dive"`

	// IdempotencyKey deduplicates retried creations. Optional.
	IdempotencyKey string `json:"-"`
}

// ReviseSaleRequest is the input for Service.Revise and
// Service.ReviseCorrective. Nil fields are left unchanged; a non-nil Lines
// replaces the whole line set.
type ReviseSaleRequest struct {
	Date             *time.Time       `json:"fecha,omitempty"`
	PaymentMethodID  *int64           `json:"payment_method_id,omitempty"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	ShippingCost     *decimal.Decimal `json:"costo_envio,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
	Payment          *PaymentStatus   `json:"estado_pago,omitempty"`
	Lines            *[]LineRequest   `json:"lines,omitempty"`
}

// ListSalesRequest filters the paginated sale listing.
type ListSalesRequest struct {
	Status     *SaleStatus
	Payment    *PaymentStatus
	CustomerID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PerPage    int
}
