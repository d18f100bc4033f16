package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a currency amount held at two-decimal precision.
//
// The zero value is a valid zero amount. Arithmetic never mutates the
// receiver; every operation returns a new value rounded half-up to cents.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney rounds d to two decimals.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromInt returns a whole-unit amount.
func MoneyFromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// ParseMoney parses a decimal string such as "12.34", "12,34" or "1200".
//
// A comma is accepted as the decimal separator. Signs are allowed here;
// positivity is a transaction rule, not a parsing rule.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return NewMoney(d), nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsZero() bool     { return m.d.IsZero() }

func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Float64 is for storage backends and display that cannot carry a decimal.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Percent returns m as a percentage of total, or 0 when total is not positive.
func (m Money) Percent(total Money) float64 {
	if !total.d.IsPositive() {
		return 0
	}
	f, _ := m.d.Div(total.d).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.d = d.Round(2)
	return nil
}
