// Package money formats reporting-currency amounts for API and CLI output.
package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Format renders amount in the currency's conventional notation
// (R$17.750,00 for BRL). Unknown currency codes fall back to a plain
// two-decimal rendering suffixed with the code.
func Format(amount float64, currency string) string {
	cur := gomoney.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2) + " " + currency
	}

	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Amount pairs a raw value with its formatted rendering.
type Amount struct {
	Value     float64 `json:"value"`
	Currency  string  `json:"currency"`
	Formatted string  `json:"formatted"`
}

// NewAmount builds an Amount for JSON responses.
func NewAmount(value float64, currency string) Amount {
	return Amount{Value: value, Currency: currency, Formatted: Format(value, currency)}
}
