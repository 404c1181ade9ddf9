// Package model defines the immutable value types shared by every engine:
// candles, market snapshots, order books, signals, trades, positions, and
// the configuration structs that parameterize them. All monetary and price
// quantities use shopspring/decimal; float64 never appears in price math.
package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the decimal zero value, spelled out for readability at call sites.
var Zero = decimal.Zero

// One is the decimal value 1.
var One = decimal.NewFromInt(1)

// SafeDecimal parses s into a Decimal. An empty string is treated as "no
// value supplied" and returns zero with no error — this mirrors upstream
// feed payloads that send "" for an absent price. Any non-empty string that
// fails to parse is a real error and is returned as such; the asymmetry is
// deliberate: silently defaulting a malformed non-empty value to zero would
// hide corrupt upstream data.
func SafeDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}
