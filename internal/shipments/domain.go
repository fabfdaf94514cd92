// Package shipments groups sales into delivery batches and feeds distributor
// outcomes back onto the originating sales.
package shipments

import (
	"time"

	"github.com/esencia-erp/esencia/internal/sales"
)

// DeliveryStatus is the distributor-reported outcome of one shipment.
type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "PENDIENTE"
	DeliveryDelivered   DeliveryStatus = "ENTREGADO"
	DeliveryNotFound    DeliveryStatus = "NO_ENCONTRADO"
	DeliveryRescheduled DeliveryStatus = "REPROGRAMADO"
	DeliveryCancelled   DeliveryStatus = "ANULADO"
)

// PaymentOutcome is the distributor-reported collection result.
type PaymentOutcome string

const (
	OutcomePending  PaymentOutcome = "PENDIENTE"
	OutcomePaid     PaymentOutcome = "PAGADO"
	OutcomeRejected PaymentOutcome = "RECHAZADO"
)

// ShipmentRecord is the per-sale tracking row within a batch. One row per
// (batch, sale) pair, created only by batch generation.
type ShipmentRecord struct {
	ID        int64          `json:"id"`
	BatchID   string         `json:"batch_id"`
	SaleID    int64          `json:"sale_id"`
	Status    DeliveryStatus `json:"estado"`
	Payment   PaymentOutcome `json:"estado_pago"`
	Notes     *string        `json:"notes,omitempty"`
	UpdatedBy int64          `json:"updated_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// saleStatusFor maps a delivery outcome to the sale status it propagates.
// Pending and NotFound deliberately map to nothing: the sale stays Shipped
// until the distributor reports a definitive outcome.
var saleStatusFor = map[DeliveryStatus]sales.SaleStatus{
	DeliveryDelivered:   sales.StatusDelivered,
	DeliveryCancelled:   sales.StatusCancelled,
	DeliveryRescheduled: sales.StatusRescheduled,
}

// salePaymentFor maps a collection outcome to the sale payment status. A
// rejected collection returns the sale to pending so it can be retried.
var salePaymentFor = map[PaymentOutcome]sales.PaymentStatus{
	OutcomePaid:     sales.PaymentPaid,
	OutcomeRejected: sales.PaymentPending,
}

func validDelivery(s DeliveryStatus) bool {
	switch s {
	case DeliveryPending, DeliveryDelivered, DeliveryNotFound, DeliveryRescheduled, DeliveryCancelled:
		return true
	}
	return false
}

func validOutcome(p PaymentOutcome) bool {
	switch p {
	case OutcomePending, OutcomePaid, OutcomeRejected:
		return true
	}
	return false
}
