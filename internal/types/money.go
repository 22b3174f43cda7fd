// README: Common money value object used across modules.
package types

import "math"

// DefaultCurrency is the currency every fare in the catalog is quoted in.
const DefaultCurrency = "inr"

// Money is an amount in minor units (paise, cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// FromMajor converts a major-unit fare into minor units, rounding half away from zero.
func FromMajor(v float64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}
