package shipments

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates an unknown shipment record or batch id.
var ErrNotFound = errors.New("shipments: not found")

// ErrNoCandidates indicates the batch selection matched no eligible sale.
var ErrNoCandidates = errors.New("shipments: no eligible sales for batch")

// ErrInvalidStatus indicates an unknown delivery status or payment outcome.
var ErrInvalidStatus = errors.New("shipments: invalid status")

// IncompleteAddress describes one sale whose customer address cannot be
// shipped to.
type IncompleteAddress struct {
	SaleID       int64    `json:"sale_id"`
	SaleNumber   string   `json:"numero"`
	CustomerName string   `json:"customer_name"`
	Address      string   `json:"address"`
	Missing      []string `json:"missing"`
}

// IncompleteAddressError aborts batch generation. It lists every offending
// sale with its partial address and the specific missing components; no
// partial batch is ever created.
type IncompleteAddressError struct {
	Sales []IncompleteAddress `json:"sales"`
}

func (e *IncompleteAddressError) Error() string {
	parts := make([]string, len(e.Sales))
	for i, s := range e.Sales {
		parts[i] = fmt.Sprintf("%s (%s): missing %s", s.SaleNumber, s.CustomerName, strings.Join(s.Missing, ", "))
	}
	return "shipments: incomplete delivery addresses: " + strings.Join(parts, "; ")
}
