// Package sales implements the order transaction engine: sale creation,
// revision and deletion with stock kept consistent, collision-free sale
// numbering and lifecycle-gated edits.
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the delivery lifecycle state of a sale.
type SaleStatus string

const (
	StatusInProgress  SaleStatus = "EN_PROCESO"
	StatusShipped     SaleStatus = "ENVIADA"
	StatusDelivered   SaleStatus = "ENTREGADA"
	StatusRescheduled SaleStatus = "REPROGRAMADA"
	StatusCancelled   SaleStatus = "ANULADA"
)

// PaymentStatus is the collection state of a sale.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDIENTE"
	PaymentPaid    PaymentStatus = "PAGADA"
)

// Sale is the aggregate header. Totals are always recomputed together from
// the lines through Totals, never patched independently.
type Sale struct {
	ID               int64           `json:"id"`
	Number           string          `json:"numero"`
	Date             time.Time       `json:"fecha"`
	CustomerID       int64           `json:"customer_id"`
	OperatorID       int64           `json:"operator_id"`
	PaymentMethodID  int64           `json:"payment_method_id"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountTotal    decimal.Decimal `json:"descuento_total"`
	ShippingCost     decimal.Decimal `json:"costo_envio"`
	Total            decimal.Decimal `json:"total"`
	Status           SaleStatus      `json:"estado"`
	Payment          PaymentStatus   `json:"estado_pago"`
	Notes            *string         `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Lines            []SaleLine      `json:"lines,omitempty"`
}

// SaleLine is one product entry within a sale. The derived amounts
// (DiscountAmount, DiscountedPrice, Subtotal) come from LineAmounts and are
// replaced atomically with the line itself.
type SaleLine struct {
	ID              int64           `json:"id"`
	SaleID          int64           `json:"sale_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"cantidad"`
	UnitPrice       decimal.Decimal `json:"precio_unitario"`
	DiscountPct     decimal.Decimal `json:"descuento_pct"`
	DiscountAmount  decimal.Decimal `json:"descuento_monto"`
	DiscountedPrice decimal.Decimal `json:"precio_con_descuento"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// SaleWithCustomer enriches a listing row with the customer name.
type SaleWithCustomer struct {
	Sale
	CustomerName string `json:"customer_name"`
}
