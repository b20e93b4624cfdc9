package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/pkg/cache"
)

func TestCompute_OneResultPerEntity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.compute.Compute(ctx, ComputeParams{
		EntityIDs: []string{"2330", "2317", "2330", "9999", ""},
		Plan:      factor.PlanOf("last_bar"),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	v, ok := out["2330"].Float("last_close")
	require.True(t, ok)
	assert.Equal(t, 109.0, v)
	assert.Equal(t, lastDay, out["2330"].CalculationDate)

	missing := out["9999"]
	require.Len(t, missing.Diagnostics.Errors, 1)
	assert.Equal(t, "engine", missing.Diagnostics.Errors[0].Source)
	assert.Contains(t, missing.Diagnostics.Errors[0].Message, "load series")
	assert.Empty(t, missing.Factors)

	assert.Equal(t, 3, f.results.Len(), "every computed result is persisted")
}

func TestCompute_AsOfBoundsTheSeries(t *testing.T) {
	f := newFixture()
	out, err := f.compute.Compute(context.Background(), ComputeParams{
		EntityIDs: []string{"2330"},
		AsOf:      day0.AddDate(0, 0, 4).Add(15 * time.Hour),
		Plan:      factor.PlanOf("last_bar"),
	})
	require.NoError(t, err)
	v, _ := out["2330"].Float("last_close")
	assert.Equal(t, 104.0, v)
}

func TestCompute_ServesRepeatsFromCache(t *testing.T) {
	f := newFixture()
	mc := cache.NewMemoryCache()
	WithResultCache(mc, time.Hour)(f.compute)
	ctx := context.Background()
	p := ComputeParams{EntityIDs: []string{"2330", "9999"}, Plan: factor.PlanOf("last_bar")}

	first, err := f.compute.Compute(ctx, p)
	require.NoError(t, err)
	second, err := f.compute.Compute(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 1, f.series.count("2330"))
	assert.Equal(t, 2, f.series.count("9999"), "failed results are not cached")
	a, _ := first["2330"].Float("last_close")
	b, _ := second["2330"].Float("last_close")
	assert.Equal(t, a, b)

	other := ComputeParams{EntityIDs: []string{"2330"}, Plan: factor.PlanOf("last_bar").WithLookback(5)}
	_, err = f.compute.Compute(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, f.series.count("2330"), "a different plan is a different key")
}

func TestCompute_RejectsUnrunnableRequests(t *testing.T) {
	f := newFixture()
	_, err := f.compute.Compute(context.Background(), ComputeParams{Plan: factor.DefaultPlan()})
	assert.ErrorIs(t, err, ErrNoEntities)

	_, err = f.compute.Compute(context.Background(), ComputeParams{
		EntityIDs: []string{"2330"},
		Plan:      factor.DefaultPlan().WithLookback(0),
	})
	assert.ErrorContains(t, err, "invalid plan")
}

func TestCompute_CancelledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.compute.Compute(ctx, ComputeParams{EntityIDs: []string{"2330", "2317"}, Plan: factor.PlanOf("last_bar")})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, r := range out {
		require.Len(t, r.Diagnostics.Errors, 1)
		assert.Equal(t, models.LevelError, r.Diagnostics.Errors[0].Level)
	}
}

func TestPlanSpec_Build(t *testing.T) {
	plan, err := (*PlanSpec)(nil).Build()
	require.NoError(t, err)
	assert.Equal(t, factor.DefaultPlan(), plan)

	yes := false
	plan, err = (&PlanSpec{
		Preset:       "full",
		LookbackDays: 30,
		MaxPriority:  "p1",
		Params:       map[string]map[string]float64{"rsi": {"period": 9}},
		Score:        &yes,
	}).Build()
	require.NoError(t, err)
	assert.Equal(t, 30, plan.LookbackDays)
	assert.Equal(t, models.P1, plan.MaxPriority)
	assert.Equal(t, 9.0, plan.Params["rsi"]["period"])
	assert.False(t, plan.Score)
	assert.True(t, plan.Enabled(models.CategoryMargin))

	plan, err = (&PlanSpec{Calculators: []string{"rsi"}, Categories: []string{"margin"}}).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"rsi"}, plan.Calculators)
	assert.True(t, plan.Enabled(models.CategoryMargin))
	assert.True(t, plan.Score, "score follows the preset")

	_, err = (&PlanSpec{Preset: "turbo"}).Build()
	assert.Error(t, err)
	_, err = (&PlanSpec{Categories: []string{"astrology"}}).Build()
	assert.Error(t, err)
	_, err = (&PlanSpec{MaxPriority: "P7"}).Build()
	assert.Error(t, err)
}
