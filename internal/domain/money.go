package domain

import (
	"fmt"
	"math"
)

// Prices are stored and computed as integer cents. Decimal amounts only
// appear at the API edge, where clients submit prices in major units.

// CentsFromAmount converts a decimal amount in major units to integer
// cents, rounding half away from zero. Returns an error for negative,
// NaN, or infinite amounts.
func CentsFromAmount(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, &Error{Code: EINVALID, Message: "Price is not a valid number"}
	}
	if amount < 0 {
		return 0, &Error{Code: EINVALID, Message: "Price must not be negative"}
	}
	return int64(math.Round(amount * 100)), nil
}

// AmountFromCents converts integer cents back to a decimal amount in
// major units for API responses.
func AmountFromCents(cents int64) float64 {
	return float64(cents) / 100
}

// FormatCents renders cents as a plain decimal string, e.g. 1050 -> "10.50".
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
