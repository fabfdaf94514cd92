package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineAmounts(t *testing.T) {
	tests := []struct {
		name            string
		unitPrice       string
		discountPct     string
		quantity        int
		discountAmount  string
		discountedPrice string
		subtotal        string
	}{
		{"ten percent off", "1000", "10", 3, "100", "900", "2700"},
		{"no discount", "1500.50", "0", 2, "0", "1500.50", "3001"},
		{"full discount", "800", "100", 1, "800", "0", "0"},
		{"fractional rounding", "33.33", "15", 2, "5.00", "28.33", "56.66"},
		{"half cent rounds", "10.05", "2.5", 1, "0.25", "9.80", "9.80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, price, subtotal := LineAmounts(dec(tt.unitPrice), dec(tt.discountPct), tt.quantity)
			assert.True(t, dec(tt.discountAmount).Equal(amount), "discount amount: want %s, got %s", tt.discountAmount, amount)
			assert.True(t, dec(tt.discountedPrice).Equal(price), "discounted price: want %s, got %s", tt.discountedPrice, price)
			assert.True(t, dec(tt.subtotal).Equal(subtotal), "subtotal: want %s, got %s", tt.subtotal, subtotal)
		})
	}
}

func TestTotals(t *testing.T) {
	amount1, price1, sub1 := LineAmounts(dec("1000"), dec("10"), 3)
	amount2, price2, sub2 := LineAmounts(dec("250"), dec("0"), 2)
	lines := []SaleLine{
		{ProductID: 1, Quantity: 3, UnitPrice: dec("1000"), DiscountPct: dec("10"),
			DiscountAmount: amount1, DiscountedPrice: price1, Subtotal: sub1},
		{ProductID: 2, Quantity: 2, UnitPrice: dec("250"), DiscountPct: dec("0"),
			DiscountAmount: amount2, DiscountedPrice: price2, Subtotal: sub2},
	}

	subtotal, discountTotal, total := Totals(lines, dec("500"))

	assert.True(t, dec("3500").Equal(subtotal), "subtotal: got %s", subtotal)
	assert.True(t, dec("300").Equal(discountTotal), "discount total: got %s", discountTotal)
	// 3500 - 300 + 500
	assert.True(t, dec("3700").Equal(total), "total: got %s", total)
}

func TestTotals_EmptyLines(t *testing.T) {
	subtotal, discountTotal, total := Totals(nil, dec("120"))
	assert.True(t, subtotal.IsZero())
	assert.True(t, discountTotal.IsZero())
	assert.True(t, dec("120").Equal(total))
}
