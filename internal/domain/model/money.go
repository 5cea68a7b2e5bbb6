package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (1/100 of the currency unit).
type Money int64

const minorDigits = 2

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// ProviderString renders the amount the way the payment provider expects it:
// whole units without a fraction, otherwise two fractional digits.
func (m Money) ProviderString() string {
	if int64(m)%100 == 0 {
		return m.Decimal().StringFixed(0)
	}
	return m.String()
}

// Mul returns the amount multiplied by qty.
func (m Money) Mul(qty int64) Money {
	return Money(int64(m) * qty)
}

// MoneyFromDecimal converts major units to Money. More than two fractional
// digits or a value outside int64 minor units is an error.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(minorDigits)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", d, minorDigits)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("amount %s out of range", d)
	}
	return Money(minor.IntPart()), nil
}

// ParseMoney accepts a decimal in major units, e.g. "20", "20.5", "20.50".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MarshalJSON writes a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in major units.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
