package calculators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
)

func TestAll_UniqueNamesAndValidMetadata(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range All() {
		m := c.Metadata()
		assert.False(t, seen[m.Name], "duplicate %s", m.Name)
		seen[m.Name] = true
		assert.Equal(t, c.Name(), m.Name)
		assert.True(t, m.Category.Valid(), m.Name)
		assert.Positive(t, m.MinDataPoints, m.Name)
		assert.NotEmpty(t, m.Label, m.Name)
	}
	assert.Equal(t, len(All()), NewRegistry().Len())
}

func TestFullPlan_OverSyntheticSeries(t *testing.T) {
	eng := factor.NewEngine(NewRegistry())
	res, err := eng.Compute(context.Background(), synthetic("2330", 130), factor.FullPlan())
	require.NoError(t, err)

	assert.Empty(t, res.Diagnostics.Errors)
	assert.Empty(t, res.Diagnostics.Warnings)
	for _, c := range []models.Category{
		models.CategoryTrend, models.CategoryMomentum, models.CategoryVolatility,
		models.CategoryStatistical, models.CategoryInstitutional, models.CategoryMargin,
		models.CategoryPattern, models.CategorySignal,
	} {
		assert.NotEmpty(t, res.Factors[c], c)
	}
	for _, k := range []string{"ma_20", "rsi_14", "kd_k", "macd", "hurst_exponent", "foreign_continuous_days", "margin_change", "volume_ratio"} {
		_, ok := res.Value(k)
		assert.True(t, ok, k)
	}
	h, _ := res.Float("hurst_exponent")
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, 1.0)
	require.NotNil(t, res.Score)
	assert.NotEmpty(t, res.Grade)
}

func TestDefaultPlan_ShortSeriesWarnsInsteadOfFailing(t *testing.T) {
	eng := factor.NewEngine(NewRegistry())
	res, err := eng.Compute(context.Background(), synthetic("2330", 10), factor.DefaultPlan())
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics.Errors)
	require.NotEmpty(t, res.Diagnostics.Warnings)

	var rsi *models.Diagnostic
	for i, w := range res.Diagnostics.Warnings {
		if w.Source == "rsi" {
			rsi = &res.Diagnostics.Warnings[i]
		}
	}
	require.NotNil(t, rsi)
	assert.Contains(t, rsi.Message, "required 15 data points, got 10")
	assert.Contains(t, res.Factors[models.CategoryTrend], "ma_5")
}
