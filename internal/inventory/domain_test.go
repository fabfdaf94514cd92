package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBelowMinimum(t *testing.T) {
	assert.True(t, Product{Stock: 2, MinStock: 3}.BelowMinimum())
	assert.False(t, Product{Stock: 3, MinStock: 3}.BelowMinimum())
	assert.False(t, Product{Stock: 10, MinStock: 3}.BelowMinimum())
}

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{ProductID: 7, ProductName: "Eau de Nuit 100ml", Requested: 3, Available: 1}
	assert.Contains(t, err.Error(), "Eau de Nuit 100ml")
	assert.Contains(t, err.Error(), "requested 3, available 1")
}
