// Package money holds the rounding and display rules shared by every
// amount the billing service computes or prints.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds x to two decimal places, ties away from zero.
//
// The float is first converted to its shortest decimal representation, so
// 10.005 rounds to 10.01 even though its binary value sits just below the tie.
func Round2(x float64) (float64, error) {
	if !IsFinite(x) {
		return 0, ErrInvalidNumber
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64(), nil
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
