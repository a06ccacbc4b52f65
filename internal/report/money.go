package report

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

// Currency formats money for printed reports.
type Currency struct {
	Code   string
	Symbol string
}

// Format renders m with thousands separators and two decimals, e.g. "R 1,207.50".
func (c Currency) Format(m deal.Money) string {
	rounded := m.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Mul(decimal.NewFromInt(100)).IntPart()

	var b strings.Builder
	b.WriteString(sign)
	if c.Symbol != "" {
		b.WriteString(c.Symbol)
		b.WriteByte(' ')
	}
	b.WriteString(humanize.Comma(whole.IntPart()))
	b.WriteByte('.')
	if cents < 10 {
		b.WriteByte('0')
	}
	b.WriteString(humanize.Comma(cents))
	return b.String()
}

// Percent renders a split or commission rate, e.g. "50%".
func Percent(m deal.Money) string {
	return m.Round(2).String() + "%"
}
