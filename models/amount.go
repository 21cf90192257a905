package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits carried by balances and amounts
const AmountScale = 2

// IsValidAmount reports whether d is a positive amount with at most two fractional digits
func IsValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(AmountScale))
}

// ParseAmount parses a user-supplied decimal string into a transfer amount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q", s)
	}
	if !IsValidAmount(d) {
		return decimal.Zero, fmt.Errorf("amount %q must be positive with at most %d decimal places", s, AmountScale)
	}
	return d, nil
}
