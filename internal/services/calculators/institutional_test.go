package calculators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

func TestInstitutionalFlow(t *testing.T) {
	c := NewInstitutionalFlow()
	s := seriesOf("2330", map[string][]float64{
		models.ColForeignNet: {10, 20, 30, 40, 50, 60},
		models.ColTrustNet:   {-1, -1, -1, -1, -1, -5},
	})
	out, err := c.Calculate(s, c.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 60.0, out["foreign_net"])
	assert.Equal(t, -5.0, out["trust_net"])
	assert.Equal(t, 200.0, out["foreign_net_5d"])
	assert.Equal(t, -9.0, out["trust_net_5d"])
	assert.Equal(t, 55.0, out["institutional_net"])
	assert.NotContains(t, out, "dealer_net")

	assert.False(t, c.HasEnoughData(closes(1, 2, 3), nil))
}

func TestContinuousDays(t *testing.T) {
	c := NewContinuousDays()
	s := seriesOf("2330", map[string][]float64{
		models.ColForeignNet: {1, 2, -1, -2, -3},
		models.ColTrustNet:   {5, 5, 5, 1, 0},
		models.ColDealerNet:  {-1, 1, 2, 3, 4},
	})
	out, err := c.Calculate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Values{
		"foreign_continuous_days": -3.0,
		"trust_continuous_days":   0.0,
		"dealer_continuous_days":  4.0,
	}, out)
}

func TestMarginChange(t *testing.T) {
	c := NewMarginChange()
	s := seriesOf("2330", map[string][]float64{
		models.ColMarginBalance: {90, 100, 110},
		models.ColShortBalance:  {9, 10, 11},
	})
	out, err := c.Calculate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, 110.0, out["margin_balance"])
	assert.Equal(t, 10.0, out["margin_change"])
	assert.InDelta(t, 10.0, out["margin_change_pct"], 1e-12)
	assert.Equal(t, 2.0, out["margin_continuous_days"])
	assert.Equal(t, 1.0, out["short_change"])
	assert.InDelta(t, 10.0, out["short_margin_ratio"], 1e-12)

	noShort := seriesOf("2330", map[string][]float64{models.ColMarginBalance: {100, 90}})
	out, err = c.Calculate(noShort, nil)
	require.NoError(t, err)
	assert.Equal(t, -1.0, out["margin_continuous_days"])
	assert.NotContains(t, out, "short_balance")
}
