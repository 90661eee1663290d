// Package core holds the beep.money domain model: transaction types,
// calendar dates, and the spending aggregation that every summary endpoint
// and report email is built on.
//
// This file contains amount parsing and currency formatting. Amounts are
// exact decimals end to end; rounding to cents happens only when a total is
// formatted for output.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a provider amount string to a signed decimal.
// Providers send amounts either as JSON numbers or as quoted strings;
// both arrive here as their textual form. Rejects empty and non-numeric
// input so malformed records are quarantined at the boundary instead of
// turning totals into NaN.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// FormatUSD renders a decimal as a US-locale currency string with two
// decimal places and thousands separators, e.g. "$1,234.56".
func FormatUSD(d decimal.Decimal) string {
	neg := d.Sign() < 0
	s := d.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}
