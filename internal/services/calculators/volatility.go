package calculators

import (
	"math"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// Bollinger bands at k population standard deviations around the SMA.
type Bollinger struct{ factor.Base }

func NewBollinger() *Bollinger {
	return &Bollinger{factor.NewBase(
		meta("bollinger", models.CategoryVolatility, "Bollinger bands", 20, models.P1,
			factor.Params{factor.ParamPeriod: 20, "k": 2}, models.ColClose),
		periodPlus(factor.ParamPeriod, 20, 0))}
}

func (c *Bollinger) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 20)
	w := features.Window(s.Column(models.ColClose), n)
	if w == nil {
		return models.Values{}, nil
	}
	mid := features.Mean(w)
	dev := p.Float("k", 2) * features.StdDev(w)
	upper, lower := mid+dev, mid-dev
	pctB := 0.5
	if upper > lower {
		pctB = (features.Last(w) - lower) / (upper - lower)
	}
	out := models.Values{
		"bb_upper":     upper,
		"bb_middle":    mid,
		"bb_lower":     lower,
		"bb_percent_b": pctB,
	}
	if mid != 0 {
		out["bb_width"] = (upper - lower) / mid
	}
	return out, nil
}

// ATR is the Wilder-smoothed average true range.
type ATR struct{ factor.Base }

func NewATR() *ATR {
	return &ATR{factor.NewBase(
		meta("atr", models.CategoryVolatility, "Average true range", 15, models.P1,
			factor.Params{factor.ParamPeriod: 14}, models.ColHigh, models.ColLow, models.ColClose),
		periodPlus(factor.ParamPeriod, 14, 1))}
}

func (c *ATR) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 14)
	high, low, closes := s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if !aligned(n+1, high, low, closes) {
		return models.Values{}, nil
	}
	tr := func(i int) float64 {
		return math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-closes[i-1]), math.Abs(low[i]-closes[i-1])))
	}
	atr := 0.0
	for i := 1; i <= n; i++ {
		atr += tr(i)
	}
	atr /= float64(n)
	for i := n + 1; i < len(closes); i++ {
		atr = (atr*float64(n-1) + tr(i)) / float64(n)
	}
	out := models.Values{keyed("atr", n): atr}
	if last := features.Last(closes); last > 0 {
		out["atr_pct"] = atr / last * 100
	}
	return out, nil
}

// RealizedVolatility is the annualised standard deviation of daily log returns.
type RealizedVolatility struct{ factor.Base }

func NewRealizedVolatility() *RealizedVolatility {
	return &RealizedVolatility{factor.NewBase(
		meta("realized_volatility", models.CategoryVolatility, "Realized volatility", 21, models.P2,
			factor.Params{"window": 20}, models.ColClose),
		periodPlus("window", 20, 1))}
}

func (c *RealizedVolatility) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	w := p.Int("window", 20)
	r := features.ComputeLogReturns(s.Column(models.ColClose))
	if w <= 1 || len(r) < w {
		return models.Values{}, nil
	}
	return models.Values{
		keyed("realized_vol", w): features.RealizedVolatility(r, w, features.TradingDaysPerYear),
	}, nil
}
