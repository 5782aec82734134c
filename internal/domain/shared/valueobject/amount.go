package valueobject

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every persisted or
// compared monetary amount carries.
const MoneyPlaces int32 = 2

var (
	// One is the decimal 1, used for markup factors.
	One = decimal.NewFromInt(1)
	// Hundred converts fractions to percentages.
	Hundred = decimal.NewFromInt(100)
)

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Sum adds the values without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// SumRound2 adds the values and rounds the result.
func SumRound2(values ...decimal.Decimal) decimal.Decimal {
	return Round2(Sum(values...))
}

// WithinTolerance reports whether |a-b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// InRange reports whether lo <= d <= hi.
func InRange(d, lo, hi decimal.Decimal) bool {
	return d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi)
}

// Percent formats a fractional rate as a percentage string, e.g. 0.1 -> "10".
func Percent(rate decimal.Decimal) string {
	return rate.Mul(Hundred).String()
}
