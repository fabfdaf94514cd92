package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var esPrinter = message.NewPrinter(language.Spanish)

// FormatAmount renders a monetary amount for distributor-facing manifests
// using Spanish digit grouping, e.g. 1234.5 -> "$ 1.234,50".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return esPrinter.Sprintf("$ %.2f", f)
}
