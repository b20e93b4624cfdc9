package calculators

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/services/factor"
)

func TestStdDev(t *testing.T) {
	c := NewStdDev()
	out, err := c.Calculate(closes(repeat(10, 20)...), c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["stddev_20"])
	assert.Equal(t, 0.0, out["zscore_20"])
	assert.Equal(t, VolatilityLow, out["volatility_level"])
	assert.Equal(t, Normal, out["zscore_signal"])

	spike := append(repeat(10, 19), 30)
	out, err = c.Calculate(closes(spike...), c.Defaults())
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(19), out["stddev_20"], 1e-9)
	assert.InDelta(t, 19/math.Sqrt(19), out["zscore_20"], 1e-9)
	assert.Equal(t, VolatilityHigh, out["volatility_level"])
	assert.Equal(t, Overbought, out["zscore_signal"])

	dip := append(repeat(10, 19), 9.5)
	out, err = c.Calculate(closes(dip...), c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, Oversold, out["zscore_signal"])
	assert.Equal(t, VolatilityLow, out["volatility_level"])
}

func TestHurst_FlatSeriesIsRandomWalk(t *testing.T) {
	c := NewHurst()
	out, err := c.Calculate(closes(repeat(42, 60)...), c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 0.5, out["hurst_exponent"])
	assert.Equal(t, RandomWalk, out["hurst_regime"])
}

func TestHurstRS_FewerThanTwoScales(t *testing.T) {
	assert.Equal(t, 0.5, HurstRS([]float64{0.1, -0.1, 0.2, -0.3, 0.1}, 4, 32))
	assert.Equal(t, 0.5, HurstRS(nil, 4, 32))
}

func TestHurstRS_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	noise := make([]float64, 256)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}
	h := HurstRS(noise, 4, 128)
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, 1.0)

	// a persistent random walk in returns trends strongly
	walk := make([]float64, 256)
	acc := 0.0
	for i := range walk {
		acc += rng.NormFloat64()
		walk[i] = acc
	}
	assert.Equal(t, Trending, HurstRegime(HurstRS(walk, 4, 128)))
}

func TestHurstRegime(t *testing.T) {
	assert.Equal(t, Trending, HurstRegime(0.61))
	assert.Equal(t, MeanReverting, HurstRegime(0.39))
	assert.Equal(t, RandomWalk, HurstRegime(0.6))
	assert.Equal(t, RandomWalk, HurstRegime(0.4))
}

func TestHurst_UsesLookback(t *testing.T) {
	c := NewHurst()
	p := c.Defaults()
	assert.Equal(t, 60.0, p[factor.ParamLookback])
	assert.True(t, c.HasEnoughData(closes(ramp(1, 10)...), p))
	assert.False(t, c.HasEnoughData(closes(ramp(1, 9)...), p))
	p["min_lag"] = 8
	assert.False(t, c.HasEnoughData(closes(ramp(1, 16)...), p))
	assert.True(t, c.HasEnoughData(closes(ramp(1, 17)...), p))
}
