// Package masterdata exposes the reference entities the order engine
// consumes read-only: customers and payment methods. Their CRUD lives in
// the back-office application, not here.
package masterdata

import "errors"

var (
	// ErrCustomerNotFound indicates an unknown customer id.
	ErrCustomerNotFound = errors.New("masterdata: customer not found")
	// ErrPaymentMethodNotFound indicates an unknown payment method id.
	ErrPaymentMethodNotFound = errors.New("masterdata: payment method not found")
)

// Customer carries the fields the engine needs: identity, delivery address
// and the active flag.
type Customer struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Street       string `json:"street"`
	StreetNumber string `json:"street_number"`
	PostalCode   string `json:"postal_code"`
	City         string `json:"city"`
	Province     string `json:"province"`
	Phone        string `json:"phone,omitempty"`
	Active       bool   `json:"active"`
}

// MissingAddressFields returns the names of required delivery address
// components that are empty. An empty result means the address is complete
// enough to ship to.
func (c Customer) MissingAddressFields() []string {
	var missing []string
	if c.Street == "" {
		missing = append(missing, "street")
	}
	if c.StreetNumber == "" {
		missing = append(missing, "street_number")
	}
	if c.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if c.City == "" {
		missing = append(missing, "city")
	}
	if c.Province == "" {
		missing = append(missing, "province")
	}
	return missing
}

// FullAddress renders the partial or complete address for error reporting
// and manifests.
func (c Customer) FullAddress() string {
	addr := c.Street
	if c.StreetNumber != "" {
		addr += " " + c.StreetNumber
	}
	if c.City != "" {
		addr += ", " + c.City
	}
	if c.Province != "" {
		addr += ", " + c.Province
	}
	if c.PostalCode != "" {
		addr += " (" + c.PostalCode + ")"
	}
	return addr
}

// PaymentMethod is a lookup row. RequiresReference marks methods (e.g. bank
// transfer) that demand a payment reference string on the sale.
type PaymentMethod struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	RequiresReference bool   `json:"requires_reference"`
	Active            bool   `json:"active"`
}
