// internal/domain/ledger/amount.go
package ledger

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount coerces free-form user input into a monetary amount. Unparsable
// or negative input yields 0. This leniency is deliberate: the raw text stays
// editable in the caller's input field, so nothing is lost by coercing.
func ParseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ParseCommission coerces free-form input into a commission percentage.
// Absent or non-numeric input is treated as 0; fractional values pass
// through as given.
func ParseCommission(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatCommission renders a stored commission back into the text form the
// user edits, without trailing zeros.
func FormatCommission(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
