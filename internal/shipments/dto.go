package shipments

import "time"

// GenerateBatchRequest selects the sales to dispatch. An explicit id set
// takes precedence; otherwise the optional date range filters the eligible
// sales.
type GenerateBatchRequest struct {
	SaleIDs  []int64    `json:"sale_ids,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// BatchSummary is the result of batch generation.
type BatchSummary struct {
	BatchID string `json:"batch_id"`
	Members int    `json:"members"`
	Items   int    `json:"items"`
}

// UpdateShipmentRequest carries a distributor outcome. Nil fields are left
// unchanged.
type UpdateShipmentRequest struct {
	Delivery *DeliveryStatus `json:"estado,omitempty"`
	Payment  *PaymentOutcome `json:"estado_pago,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

// BatchUpdateItem is one member update within a batch-wide status update.
type BatchUpdateItem struct {
	ShipmentID int64 `json:"shipment_id"`
	UpdateShipmentRequest
}

// MemberOutcome reports what happened to one member of a batch-wide update.
type MemberOutcome struct {
	ShipmentID int64  `json:"shipment_id"`
	Updated    bool   `json:"updated"`
	Reason     string `json:"reason,omitempty"`
}

// ManifestEntry is one line of the distributor-facing batch manifest.
type ManifestEntry struct {
	ShipmentID   int64          `json:"shipment_id"`
	SaleNumber   string         `json:"numero"`
	CustomerName string         `json:"customer_name"`
	Address      string         `json:"address"`
	Phone        string         `json:"phone,omitempty"`
	Items        int            `json:"items"`
	Amount       string         `json:"amount"`
	Status       DeliveryStatus `json:"estado"`
	Payment      PaymentOutcome `json:"estado_pago"`
}

// Manifest is the printable view of one batch.
type Manifest struct {
	BatchID     string          `json:"batch_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Entries     []ManifestEntry `json:"entries"`
	TotalAmount string          `json:"total_amount"`
}
