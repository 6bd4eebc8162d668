package core

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext is the arithmetic context shared by all helpers. 34 digits
// covers every price and quantity the exchanges report.
var decimalContext = apd.BaseContext.WithPrecision(34)

// ParseDecimal parses s leniently: surrounding quotes and whitespace are
// ignored and anything that is not a finite number yields nil.
func ParseDecimal(s string) *apd.Decimal {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" || s == "null" {
		return nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return nil
	}
	return d
}

// MustDecimal parses s and panics on failure. Intended for constants and tests.
func MustDecimal(s string) *apd.Decimal {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid decimal %q: %v", s, err))
	}
	return d
}

// SubDecimal returns x - y, or nil when either operand is unknown.
func SubDecimal(x, y *apd.Decimal) *apd.Decimal {
	if x == nil || y == nil {
		return nil
	}
	d := new(apd.Decimal)
	if _, err := decimalContext.Sub(d, x, y); err != nil {
		return nil
	}
	return d
}

// MulDecimal returns x * y, or nil when either operand is unknown.
func MulDecimal(x, y *apd.Decimal) *apd.Decimal {
	if x == nil || y == nil {
		return nil
	}
	d := new(apd.Decimal)
	if _, err := decimalContext.Mul(d, x, y); err != nil {
		return nil
	}
	return d
}

// PowTen returns 10^exp, e.g. PowTen(-2) is 0.01.
func PowTen(exp int) *apd.Decimal {
	return apd.New(1, int32(exp))
}

// AmountToPrecision truncates amount to the given number of decimal places.
// A nil precision leaves the value untouched.
func AmountToPrecision(amount *apd.Decimal, places *int) (string, error) {
	return toPrecision(amount, places, apd.RoundDown)
}

// PriceToPrecision rounds price half-up to the given number of decimal places.
// A nil precision leaves the value untouched.
func PriceToPrecision(price *apd.Decimal, places *int) (string, error) {
	return toPrecision(price, places, apd.RoundHalfUp)
}

func toPrecision(x *apd.Decimal, places *int, rounding apd.Rounder) (string, error) {
	if x == nil {
		return "", fmt.Errorf("nil decimal")
	}
	if places == nil {
		return x.Text('f'), nil
	}
	ctx := *decimalContext
	ctx.Rounding = rounding
	d := new(apd.Decimal)
	if _, err := ctx.Quantize(d, x, -int32(*places)); err != nil {
		return "", fmt.Errorf("quantize %s to %d places: %w", x.Text('f'), *places, err)
	}
	return d.Text('f'), nil
}
