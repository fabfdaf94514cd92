package sales

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineAmounts derives the discount amount, discounted unit price and line
// subtotal for one line. Called explicitly wherever line inputs change;
// amounts are never derived as a save-time side effect.
func LineAmounts(unitPrice, discountPct decimal.Decimal, quantity int) (discountAmount, discountedPrice, subtotal decimal.Decimal) {
	qty := decimal.NewFromInt(int64(quantity))
	discountAmount = unitPrice.Mul(discountPct).Div(hundred).Round(2)
	discountedPrice = unitPrice.Sub(discountAmount)
	subtotal = discountedPrice.Mul(qty).Round(2)
	return discountAmount, discountedPrice, subtotal
}

// Totals recomputes the header amounts from the lines. Subtotal accumulates
// gross amounts, DiscountTotal the per-line discounts, and
// total = subtotal - discount_total + shipping. The three always change
// together.
func Totals(lines []SaleLine, shipping decimal.Decimal) (subtotal, discountTotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	discountTotal = decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.UnitPrice.Mul(qty))
		discountTotal = discountTotal.Add(l.DiscountAmount.Mul(qty))
	}
	subtotal = subtotal.Round(2)
	discountTotal = discountTotal.Round(2)
	total = subtotal.Sub(discountTotal).Add(shipping).Round(2)
	return subtotal, discountTotal, total
}
