// Package money converts between minor currency units (stored) and decimal
// major units (accepted from and shown to admins).
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitExponent = 2

var hundred = decimal.NewFromInt(100)

// ParseMajor converts a decimal string such as "19.99" into minor units (1999).
// More than two fractional digits is rejected rather than rounded.
func ParseMajor(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	if amount.Exponent() < -minorUnitExponent && !amount.Equal(amount.Round(minorUnitExponent)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", value, minorUnitExponent)
	}
	return amount.Mul(hundred).IntPart(), nil
}

// FormatMajor renders minor units as a fixed two-decimal string.
func FormatMajor(minor int64) string {
	return decimal.New(minor, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// Sum adds minor-unit amounts.
func Sum(amounts ...int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}
