package deal

import "github.com/shopspring/decimal"

// Money represents a monetary amount. Values are exact decimals so integer-cent
// inputs never pick up floating point drift.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity used when a field is absent.
var Zero = decimal.Zero

// NewMoney builds a Money from a whole currency amount.
func NewMoney(units int64) Money {
	return decimal.NewFromInt(units)
}

// ParseMoney parses a decimal string such as "1207.50".
func ParseMoney(value string) (Money, error) {
	return decimal.NewFromString(value)
}

// Percent returns base * pct / 100.
func Percent(base, pct Money) Money {
	return base.Mul(pct).Div(hundred)
}

// Cents rounds to two decimal places for persistence.
func Cents(m Money) Money {
	return m.Round(2)
}

func floorZero(m Money) Money {
	if m.IsNegative() {
		return Zero
	}
	return m
}
