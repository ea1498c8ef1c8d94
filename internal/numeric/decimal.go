// Package numeric centralizes decimal-string parsing so every component that
// touches exchange-reported numeric fields goes through the same fallback
// rules instead of re-deriving them.
package numeric

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a decimal string to decimal.Decimal, treating empty or
// unparsable input as zero rather than failing the caller.
func Parse(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// IsPositive reports whether a decimal string parses to a value > 0.
func IsPositive(s string) bool {
	return Parse(s).IsPositive()
}

// FirstPositive returns the first candidate that parses to a strictly
// positive decimal, or decimal.Zero if none do. Used throughout the
// aggregator for the average/order price fallback chains.
func FirstPositive(candidates ...string) decimal.Decimal {
	for _, c := range candidates {
		d := Parse(c)
		if d.IsPositive() {
			return d
		}
	}
	return decimal.Zero
}

// ParseThousands parses a numeric string that may carry thousands
// separators (e.g. "2,345,678.90"), returning an error rather than
// silently substituting zero — callers that treat "could not parse" and
// "reported as zero" differently (market metrics fields are one such
// caller: a failed parse leaves the field nil) need the distinction.
func ParseThousands(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric string")
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return d, nil
}
