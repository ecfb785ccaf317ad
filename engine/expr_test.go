package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalMath(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * (3 + 4)", 14},
		{"10 / 4", 2.5},
		{"7 - 2 - 1", 4},
		{"sqrt(16)", 4},
		{"-5 + 2", -3},
		{"log(1000)", 3},
		{"cos(0)", 1},
	}
	for _, tc := range cases {
		got, err := evalMath(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.InDelta(t, tc.want, got, 1e-9, tc.expr)
	}
}

func TestEvalMathConstants(t *testing.T) {
	got, err := evalMath("2 * pi")
	require.NoError(t, err)
	assert.InDelta(t, 6.283185307, got, 1e-6)
}

func TestEvalMathErrors(t *testing.T) {
	for _, expr := range []string{"1 +", "foo(2)", "1 / 0", "(1 + 2", ""} {
		_, err := evalMath(expr)
		assert.Error(t, err, expr)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3", formatNumber(3))
	assert.Equal(t, "2.5", formatNumber(2.5))
	assert.Equal(t, "0.333", formatNumber(1.0/3.0))
	assert.Equal(t, "-17", formatNumber(-17))
}
