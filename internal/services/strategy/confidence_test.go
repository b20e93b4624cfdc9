package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

func TestConfidence_Score(t *testing.T) {
	snap := models.FactorSnapshot{
		"rsi_14":      25,
		"kd_k":        40,
		"pe_ratio":    12,
		"foreign_net": -3,
		"close":       0,
	}
	tests := []struct {
		name    string
		formula string
		want    float64
	}{
		{"alias", "MIN(RSI,100)/100", 25},
		{"canonical id", "rsi_14/100", 25},
		{"precedence", "0.1 + 0.2 * 2", 50},
		{"parens", "(0.1 + 0.2) * 2", 60},
		{"unary minus", "-FOREIGN / 10", 30},
		{"abs", "ABS(foreign_net)/10", 30},
		{"variadic max", "max(K, RSI, 10)/100", 40},
		{"lowercase alias", "pe/100", 12},
		{"clamped high", "RSI * 1000", 100},
		{"clamped low", "-RSI", 0},
		{"scientific", "5e-1", 50},
	}
	c := NewConfidenceCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Explain(tt.formula, snap)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConfidence_FallsBackToDefault(t *testing.T) {
	snap := models.FactorSnapshot{"rsi_14": 25, "close": 0}
	bad := []string{
		"",
		"   ",
		"UNKNOWN_FACTOR / 2",
		"RSI / CLOSE",
		"RSI +",
		"(RSI",
		"RSI)",
		"FOO(1)",
		"ABS(1, 2)",
		"MIN()",
		"RSI $ 2",
		"1..2",
	}
	c := NewConfidenceCalculator()
	for _, f := range bad {
		t.Run(f, func(t *testing.T) {
			got, err := c.Explain(f, snap)
			assert.Equal(t, DefaultConfidence, got)
			var fe *FormulaEvaluationError
			assert.ErrorAs(t, err, &fe)
			assert.Equal(t, DefaultConfidence, c.Score(f, snap))
		})
	}
}

func TestConfidence_AlwaysInRange(t *testing.T) {
	c := NewConfidenceCalculator()
	snap := models.FactorSnapshot{"x": 1e308, "y": -1e308}
	for _, f := range []string{"x*x", "y*x", "x", "y", "x/0.0000001", "1/3"} {
		got := c.Score(f, snap)
		assert.GreaterOrEqual(t, got, 0.0, f)
		assert.LessOrEqual(t, got, 100.0, f)
	}
}

func TestCheckFormula(t *testing.T) {
	for _, ok := range []string{"RSI/100", "MIN(foreign_net, 5) / (close - close)", "ABS(pe_ratio) * 0.01"} {
		assert.NoError(t, CheckFormula(ok), ok)
	}
	for _, bad := range []string{"RSI +", "FOO(1)", "rsi_14 $ 2", "(1"} {
		var fe *FormulaEvaluationError
		assert.ErrorAs(t, CheckFormula(bad), &fe, bad)
	}
}
