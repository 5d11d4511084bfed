package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale of fixed-point integer amounts used by budgeting apps.
const (
	MilliUnits int32 = 3 // YNAB
	Cents      int32 = 2 // Actual Budget
)

// FromMinorUnits converts a fixed-point integer (value × 10^scale) to a decimal.
func FromMinorUnits(v int64, scale int32) decimal.Decimal {
	return decimal.New(v, -scale)
}

// Fixed2 renders d with exactly two fractional digits.
func Fixed2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseLooseAmount parses a human-entered amount, dropping every character
// other than digits, '.' and '-' first ("$1,234.50" -> 1234.50).
func ParseLooseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric content in %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d.Round(2), nil
}
