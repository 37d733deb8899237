// Package fixed provides the integer fixed-point representation used for
// cost, rate, damage, health and every other replicated quantity.
//
// Floating point is banned from simulation state: cross-platform rounding
// differences would desync two peers running the same input sequence. All
// quantities are stored in thousandths (milliunits); the scale factor is
// part of the wire contract and must match on both peers.
package fixed

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of milliunits per whole unit.
const Scale = 1000

// Milli is a quantity in thousandths of a unit. 1500 represents 1.5.
type Milli int64

// FromInt converts whole units to milliunits.
func FromInt(n int64) Milli {
	return Milli(n * Scale)
}

// Parse converts a decimal string like "1.5" to milliunits. Values with
// more precision than the scale supports are rejected rather than rounded,
// so a mistyped catalog entry fails loudly instead of silently diverging.
func Parse(s string) (Milli, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	scaled := d.Mul(decimal.NewFromInt(Scale))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("fixed: %q has more precision than 1/%d units", s, Scale)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("fixed: %q overflows milliunit range", s)
	}
	return Milli(scaled.IntPart()), nil
}

// MustParse is Parse for hand-written literals; it panics on error.
func MustParse(s string) Milli {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the value as a decimal, e.g. Milli(1500) -> "1.5".
func (m Milli) String() string {
	return decimal.New(int64(m), -3).String()
}
