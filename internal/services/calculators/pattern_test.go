package calculators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

func ohlc(rows ...[4]float64) *models.Series {
	cols := map[string][]float64{}
	for _, r := range rows {
		cols[models.ColOpen] = append(cols[models.ColOpen], r[0])
		cols[models.ColHigh] = append(cols[models.ColHigh], r[1])
		cols[models.ColLow] = append(cols[models.ColLow], r[2])
		cols[models.ColClose] = append(cols[models.ColClose], r[3])
	}
	return seriesOf("2330", cols)
}

func TestCandlestick_BullishEngulfing(t *testing.T) {
	c := NewCandlestick()
	s := ohlc(
		[4]float64{10, 10.2, 8.9, 9},
		[4]float64{8.8, 10.6, 8.7, 10.5},
	)
	out, err := c.Calculate(s, c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[PatternBullishEngulfing])
	assert.Equal(t, 0.0, out[PatternBearishEngulfing])
	assert.Equal(t, 0.0, out[PatternDoji])

	sigs, err := c.Detect(s, c.Defaults())
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, PatternBullishEngulfing, sigs[0].Type)
	assert.Equal(t, models.DirectionBullish, sigs[0].Direction)
	assert.Equal(t, "2024-01-03", sigs[0].Date)
}

func TestCandlestick_HammerAndDoji(t *testing.T) {
	c := NewCandlestick()
	hammer := ohlc(
		[4]float64{10, 10.5, 9.5, 10},
		[4]float64{10, 10.25, 9, 10.2},
	)
	out, err := c.Calculate(hammer, c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[PatternHammer])
	assert.Equal(t, 0.0, out[PatternShootingStar])

	doji := ohlc(
		[4]float64{10, 10.5, 9.5, 10},
		[4]float64{10, 11, 9, 10.05},
	)
	out, err = c.Calculate(doji, c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[PatternDoji])

	sigs, err := c.Detect(doji, c.Defaults())
	require.NoError(t, err)
	require.NotEmpty(t, sigs)
	assert.Equal(t, models.DirectionNeutral, sigs[0].Direction)
}
