package factor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FactorLab/internal/domain/models"
)

func TestPlanPresets(t *testing.T) {
	def := DefaultPlan()
	assert.Equal(t, 60, def.LookbackDays)
	assert.True(t, def.Enabled(models.CategoryTrend))
	assert.True(t, def.Enabled(models.CategorySignal))
	assert.False(t, def.Enabled(models.CategoryMargin))

	full := FullPlan()
	assert.Equal(t, 120, full.LookbackDays)
	for _, c := range models.Categories {
		assert.True(t, full.Enabled(c), c)
	}

	of := PlanOf("rsi", "hurst")
	assert.Equal(t, []string{"rsi", "hurst"}, of.Calculators)
	assert.NoError(t, of.Validate())
}

func TestPlan_BuildersDoNotMutate(t *testing.T) {
	base := DefaultPlan()
	tuned := base.WithParams("rsi", Params{"period": 9}).WithLookback(30).WithCategories(models.CategoryMargin)

	assert.Nil(t, base.Params["rsi"])
	assert.Equal(t, 60, base.LookbackDays)
	assert.False(t, base.Enabled(models.CategoryMargin))

	assert.Equal(t, 9.0, tuned.Params["rsi"]["period"])
	assert.Equal(t, 30, tuned.LookbackDays)
	assert.True(t, tuned.Enabled(models.CategoryMargin))
}

func TestPlan_Validate(t *testing.T) {
	assert.Error(t, DefaultPlan().WithLookback(0).Validate())
	p := DefaultPlan()
	p.Categories["BOGUS"] = true
	assert.Error(t, p.Validate())
}

func TestPlan_ParamsFor(t *testing.T) {
	c := paramEcho{NewBase(models.CalculatorMetadata{
		Name:          "hurst",
		DefaultParams: map[string]float64{ParamLookback: 60, "min_lag": 8},
	}, nil)}

	p := FullPlan().WithParams("hurst", Params{"min_lag": 4})
	got := p.ParamsFor(c)
	assert.Equal(t, Params{ParamLookback: 120, "min_lag": 4}, got)

	explicit := FullPlan().WithParams("hurst", Params{ParamLookback: 90})
	assert.Equal(t, 90.0, explicit.ParamsFor(c)[ParamLookback])
}
