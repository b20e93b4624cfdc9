package calculators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollinger(t *testing.T) {
	c := NewBollinger()
	out, err := c.Calculate(closes(repeat(10, 20)...), c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 10.0, out["bb_upper"])
	assert.Equal(t, 10.0, out["bb_lower"])
	assert.Equal(t, 0.5, out["bb_percent_b"])
	assert.Equal(t, 0.0, out["bb_width"])

	out, err = c.Calculate(closes(ramp(1, 20)...), c.Defaults())
	require.NoError(t, err)
	assert.Greater(t, out["bb_percent_b"].(float64), 0.5)
	assert.Less(t, out["bb_lower"].(float64), out["bb_middle"].(float64))
}

func TestATR(t *testing.T) {
	c := NewATR()
	out, err := c.Calculate(hlc(repeat(11, 20), repeat(9, 20), repeat(10, 20)), c.Defaults())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out["atr_14"], 1e-12)
	assert.InDelta(t, 20.0, out["atr_pct"], 1e-12)

	out, err = c.Calculate(hlc(repeat(11, 5), repeat(9, 5), repeat(10, 5)), c.Defaults())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRealizedVolatility(t *testing.T) {
	c := NewRealizedVolatility()
	out, err := c.Calculate(closes(repeat(10, 25)...), c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["realized_vol_20"])

	zigzag := make([]float64, 25)
	for i := range zigzag {
		zigzag[i] = 100
		if i%2 == 1 {
			zigzag[i] = 101
		}
	}
	out, err = c.Calculate(closes(zigzag...), c.Defaults())
	require.NoError(t, err)
	assert.Greater(t, out["realized_vol_20"].(float64), 0.0)
}
