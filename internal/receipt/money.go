package receipt

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders d with exactly two decimals and the given separator.
func FormatAmount(d decimal.Decimal, sep string) string {
	s := d.StringFixed(2)
	if sep != "" && sep != "." {
		s = strings.Replace(s, ".", sep, 1)
	}
	return s
}

// FormatMoney prefixes the amount with the currency symbol.
func FormatMoney(d decimal.Decimal, currency, sep string) string {
	if currency == "" {
		return FormatAmount(d, sep)
	}
	return currency + " " + FormatAmount(d, sep)
}
