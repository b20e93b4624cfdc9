package calculators

import (
	"math"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// Linear regression trend labels.
const (
	StrongUptrend   = "STRONG_UPTREND"
	Uptrend         = "UPTREND"
	WeakTrend       = "WEAK_TREND"
	Downtrend       = "DOWNTREND"
	StrongDowntrend = "STRONG_DOWNTREND"
)

var maPeriods = []int{5, 10, 20, 60}

// MovingAverage emits simple averages over the standard periods available in the series.
type MovingAverage struct{ factor.Base }

func NewMovingAverage() *MovingAverage {
	return &MovingAverage{factor.NewBase(
		meta("moving_average", models.CategoryTrend, "Simple moving averages", 5, models.P0, nil, models.ColClose), nil)}
}

func (c *MovingAverage) Calculate(s *models.Series, _ factor.Params) (models.Values, error) {
	closes := s.Column(models.ColClose)
	out := models.Values{}
	for _, n := range maPeriods {
		if len(closes) < n {
			continue
		}
		out[keyed("ma", n)] = features.SMA(closes, n)
	}
	if ma20, ok := out["ma_20"].(float64); ok && ma20 != 0 {
		out["close_vs_ma_20"] = (features.Last(closes)/ma20 - 1) * 100
	}
	return out, nil
}

// EMA emits a short and long exponential average.
type EMA struct{ factor.Base }

func NewEMA() *EMA {
	return &EMA{factor.NewBase(
		meta("ema", models.CategoryTrend, "Exponential moving averages", 26, models.P1,
			factor.Params{"short": 12, "long": 26}, models.ColClose),
		periodPlus("long", 26, 0))}
}

func (c *EMA) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	closes := s.Column(models.ColClose)
	short, long := p.Int("short", 12), p.Int("long", 26)
	if short <= 0 || long <= 0 || len(closes) < long || len(closes) < short {
		return models.Values{}, nil
	}
	return models.Values{
		keyed("ema", short): features.EMA(closes, short),
		keyed("ema", long):  features.EMA(closes, long),
	}, nil
}

// MACross reports golden (+1) and death (-1) crosses of a short SMA over a long SMA on
// the latest bar.
type MACross struct{ factor.Base }

func NewMACross() *MACross {
	return &MACross{factor.NewBase(
		meta("ma_cross", models.CategoryTrend, "Moving average crossover", 21, models.P1,
			factor.Params{"short": 5, "long": 20}, models.ColClose),
		periodPlus("long", 20, 1))}
}

func (c *MACross) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	closes := s.Column(models.ColClose)
	short, long := p.Int("short", 5), p.Int("long", 20)
	if short <= 0 || long <= short || len(closes) < long+1 {
		return models.Values{}, nil
	}
	fast := features.SMASeries(closes, short)
	slow := features.SMASeries(closes, long)
	n := len(closes)
	prev := fast[n-2] - slow[n-2]
	cur := fast[n-1] - slow[n-1]

	cross := 0.0
	switch {
	case prev <= 0 && cur > 0:
		cross = 1
	case prev >= 0 && cur < 0:
		cross = -1
	}
	out := models.Values{"ma_cross": cross}
	if slow[n-1] != 0 {
		out["ma_spread"] = (fast[n-1]/slow[n-1] - 1) * 100
	}
	return out, nil
}

// MACD is the classic 12/26/9 moving average convergence divergence.
type MACD struct{ factor.Base }

func NewMACD() *MACD {
	return &MACD{factor.NewBase(
		meta("macd", models.CategoryTrend, "MACD", 34, models.P0,
			factor.Params{"fast": 12, "slow": 26, "signal": 9}, models.ColClose),
		func(p factor.Params) int { return p.Int("slow", 26) + p.Int("signal", 9) - 1 })}
}

func (c *MACD) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	closes := s.Column(models.ColClose)
	fastN, slowN, sigN := p.Int("fast", 12), p.Int("slow", 26), p.Int("signal", 9)
	if fastN <= 0 || slowN <= fastN || sigN <= 0 || len(closes) < slowN+sigN-1 {
		return models.Values{}, nil
	}
	fast := features.EMASeries(closes, fastN)
	slow := features.EMASeries(closes, slowN)
	line := make([]float64, 0, len(closes)-slowN+1)
	for i := slowN - 1; i < len(closes); i++ {
		line = append(line, fast[i]-slow[i])
	}
	signal := features.EMA(line, sigN)
	macd := features.Last(line)
	return models.Values{
		"macd":        macd,
		"macd_signal": signal,
		"macd_hist":   macd - signal,
	}, nil
}

// LinearRegression fits closes over the last period bars by least squares.
type LinearRegression struct{ factor.Base }

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{factor.NewBase(
		meta("linear_regression", models.CategoryTrend, "Linear regression trend", 20, models.P1,
			factor.Params{factor.ParamPeriod: 20, "strong_r2": 0.8, "weak_r2": 0.5}, models.ColClose),
		periodPlus(factor.ParamPeriod, 20, 0))}
}

func (c *LinearRegression) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 20)
	y := features.Window(s.Column(models.ColClose), n)
	if n < 2 || y == nil {
		return models.Values{}, nil
	}
	fit, ok := features.OLS(features.Index(n), y)
	if !ok {
		return models.Values{}, nil
	}
	return models.Values{
		"lr_slope":     fit.Slope,
		"lr_intercept": fit.Intercept,
		"lr_r2":        fit.R2,
		"lr_signal":    RegressionSignal(fit.Slope, fit.R2, p.Float("strong_r2", 0.8), p.Float("weak_r2", 0.5)),
	}, nil
}

// RegressionSignal buckets a fit by slope sign and goodness of fit.
func RegressionSignal(slope, r2, strong, weak float64) string {
	switch {
	case r2 < weak || slope == 0 || math.IsNaN(slope):
		return WeakTrend
	case slope > 0 && r2 >= strong:
		return StrongUptrend
	case slope > 0:
		return Uptrend
	case r2 >= strong:
		return StrongDowntrend
	default:
		return Downtrend
	}
}
