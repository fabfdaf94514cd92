package masterdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingAddressFields(t *testing.T) {
	complete := Customer{
		Street: "Av. Santa Fe", StreetNumber: "1860", PostalCode: "1123",
		City: "Buenos Aires", Province: "CABA",
	}
	assert.Empty(t, complete.MissingAddressFields())

	partial := Customer{Street: "Av. Santa Fe", City: "Buenos Aires"}
	assert.Equal(t, []string{"street_number", "postal_code", "province"}, partial.MissingAddressFields())

	empty := Customer{}
	assert.Len(t, empty.MissingAddressFields(), 5)
}

func TestFullAddress(t *testing.T) {
	c := Customer{
		Street: "Av. Santa Fe", StreetNumber: "1860", PostalCode: "1123",
		City: "Buenos Aires", Province: "CABA",
	}
	assert.Equal(t, "Av. Santa Fe 1860, Buenos Aires, CABA (1123)", c.FullAddress())

	partial := Customer{Street: "Av. Santa Fe", City: "Buenos Aires"}
	assert.Equal(t, "Av. Santa Fe, Buenos Aires", partial.FullAddress())
}
