package model

import (
	"fmt"
	"strconv"
)

// Money is an amount in minor currency units (cents).  Prices and totals
// are kept as integers so that price × quantity is exact.
type Money int64

// Mul returns m multiplied by n units.
func (m Money) Mul(n int) Money { return m * Money(n) }

// String renders the amount with two fractional digits, e.g. "1500.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (or quoted number) in major units.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	if f < 0 {
		*m = Money(f*100 - 0.5)
	} else {
		*m = Money(f*100 + 0.5)
	}
	return nil
}
