package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRound2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"-1.005", "-1.01"},
		{"100", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.True(t, Round2(d(tt.input)).Equal(d(tt.want)), Round2(d(tt.input)).String())
		})
	}
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().IsZero())
	assert.True(t, Sum(d("0.333"), d("0.333"), d("0.333")).Equal(d("0.999")))
	assert.True(t, SumRound2(d("0.333"), d("0.333"), d("0.333")).Equal(d("1")))
}

func TestComparisons(t *testing.T) {
	assert.True(t, WithinTolerance(d("100.00"), d("100.01"), d("0.01")))
	assert.False(t, WithinTolerance(d("100.00"), d("100.02"), d("0.01")))
	assert.True(t, MinDecimal(d("3"), d("2")).Equal(d("2")))
	assert.True(t, InRange(d("0"), d("0"), d("1")))
	assert.False(t, InRange(d("1.01"), d("0"), d("1")))
	assert.Equal(t, "7", Percent(d("0.07")))
}
