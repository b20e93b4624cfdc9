package calculators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/services/factor"
)

func TestMovingAverage(t *testing.T) {
	c := NewMovingAverage()
	s := closes(ramp(1, 20)...)
	require.True(t, c.HasEnoughData(s, nil))

	out, err := c.Calculate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, 18.0, out["ma_5"])
	assert.Equal(t, 15.5, out["ma_10"])
	assert.Equal(t, 10.5, out["ma_20"])
	assert.NotContains(t, out, "ma_60")
	assert.InDelta(t, (20/10.5-1)*100, out["close_vs_ma_20"], 1e-9)

	assert.False(t, c.HasEnoughData(closes(1, 2, 3), nil))
}

func TestMACross(t *testing.T) {
	c := NewMACross()
	p := c.Defaults()

	golden := append(repeat(10, 20), 20)
	out, err := c.Calculate(closes(golden...), p)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["ma_cross"])

	death := append(repeat(10, 20), 0)
	out, err = c.Calculate(closes(death...), p)
	require.NoError(t, err)
	assert.Equal(t, -1.0, out["ma_cross"])

	out, err = c.Calculate(closes(ramp(1, 30)...), p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["ma_cross"])

	out, err = c.Calculate(closes(1, 2), p)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMACD_FlatIsZero(t *testing.T) {
	c := NewMACD()
	out, err := c.Calculate(closes(repeat(50, 40)...), c.Defaults())
	require.NoError(t, err)
	assert.InDelta(t, 0, out["macd"], 1e-12)
	assert.InDelta(t, 0, out["macd_signal"], 1e-12)
	assert.InDelta(t, 0, out["macd_hist"], 1e-12)

	rising, err := c.Calculate(closes(ramp(1, 60)...), c.Defaults())
	require.NoError(t, err)
	assert.Greater(t, rising["macd"], 0.0)
}

func TestEMA(t *testing.T) {
	c := NewEMA()
	out, err := c.Calculate(closes(repeat(7, 30)...), c.Defaults())
	require.NoError(t, err)
	assert.InDelta(t, 7, out["ema_12"], 1e-12)
	assert.InDelta(t, 7, out["ema_26"], 1e-12)
}

func TestLinearRegression(t *testing.T) {
	c := NewLinearRegression()
	out, err := c.Calculate(closes(ramp(100, 25)...), c.Defaults())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out["lr_slope"], 1e-9)
	assert.InDelta(t, 105.0, out["lr_intercept"], 1e-9)
	assert.InDelta(t, 1.0, out["lr_r2"], 1e-9)
	assert.Equal(t, StrongUptrend, out["lr_signal"])

	out, err = c.Calculate(closes(repeat(3, 20)...), factor.Params{factor.ParamPeriod: 20})
	require.NoError(t, err)
	assert.Equal(t, WeakTrend, out["lr_signal"])
}

func TestRegressionSignal(t *testing.T) {
	tests := []struct {
		slope, r2 float64
		want      string
	}{
		{0.5, 0.3, WeakTrend},
		{1, 0.9, StrongUptrend},
		{1, 0.8, StrongUptrend},
		{1, 0.6, Uptrend},
		{-1, 0.9, StrongDowntrend},
		{-1, 0.6, Downtrend},
		{-1, 0.49, WeakTrend},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RegressionSignal(tt.slope, tt.r2, 0.8, 0.5), "slope=%v r2=%v", tt.slope, tt.r2)
	}
}
