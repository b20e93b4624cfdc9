package calculators

import (
	"math"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// Volatility levels and Hurst regimes.
const (
	VolatilityHigh   = "HIGH"
	VolatilityMedium = "MEDIUM"
	VolatilityLow    = "LOW"

	Trending      = "TRENDING"
	MeanReverting = "MEAN_REVERTING"
	RandomWalk    = "RANDOM"
)

// StdDev reports rolling dispersion of closes and the z-score of the latest close.
// The volatility level is the coefficient of variation against fixed percentages.
type StdDev struct{ factor.Base }

func NewStdDev() *StdDev {
	return &StdDev{factor.NewBase(
		meta("std_dev", models.CategoryStatistical, "Standard deviation / Z-score", 20, models.P0,
			factor.Params{factor.ParamPeriod: 20, "high_cv": 5, "medium_cv": 2, "z_threshold": 2}, models.ColClose),
		periodPlus(factor.ParamPeriod, 20, 0))}
}

func (c *StdDev) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 20)
	w := features.Window(s.Column(models.ColClose), n)
	if n < 2 || w == nil {
		return models.Values{}, nil
	}
	sd := features.StdDev(w)
	mean := features.Mean(w)
	z := features.ZScore(features.Last(w), w)

	level := VolatilityLow
	if mean != 0 {
		cv := sd / math.Abs(mean) * 100
		switch {
		case cv >= p.Float("high_cv", 5):
			level = VolatilityHigh
		case cv >= p.Float("medium_cv", 2):
			level = VolatilityMedium
		}
	}

	zt := p.Float("z_threshold", 2)
	signal := Normal
	switch {
	case z >= zt:
		signal = Overbought
	case z <= -zt:
		signal = Oversold
	}
	return models.Values{
		keyed("stddev", n): sd,
		keyed("zscore", n): z,
		"volatility_level": level,
		"zscore_signal":    signal,
	}, nil
}

// Hurst estimates the Hurst exponent of log returns by rescaled range analysis over
// doubling window sizes.
type Hurst struct{ factor.Base }

func NewHurst() *Hurst {
	return &Hurst{factor.NewBase(
		meta("hurst", models.CategoryStatistical, "Hurst exponent", 10, models.P2,
			factor.Params{factor.ParamLookback: 60, "min_lag": 4, "max_lag": 32}, models.ColClose),
		func(p factor.Params) int { return 2*p.Int("min_lag", 4) + 1 })}
}

func (c *Hurst) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	closes := s.Column(models.ColClose)
	if lb := p.Int(factor.ParamLookback, 60); lb > 1 && len(closes) > lb {
		closes = closes[len(closes)-lb:]
	}
	h := HurstRS(features.ComputeLogReturns(closes), p.Int("min_lag", 4), p.Int("max_lag", 32))
	return models.Values{
		"hurst_exponent": h,
		"hurst_regime":   HurstRegime(h),
	}, nil
}

// HurstRS fits log(R/S) against log(n) for n = minLag, 2*minLag, ... <= maxLag. It returns
// 0.5 when fewer than two window sizes produce a usable R/S, and clamps to [0, 1].
func HurstRS(xs []float64, minLag, maxLag int) float64 {
	if minLag < 2 {
		minLag = 2
	}
	var logN, logRS []float64
	for n := minLag; n <= maxLag && n <= len(xs); n *= 2 {
		rs, ok := meanRescaledRange(xs, n)
		if !ok {
			continue
		}
		logN = append(logN, math.Log(float64(n)))
		logRS = append(logRS, math.Log(rs))
	}
	if len(logN) < 2 {
		return 0.5
	}
	fit, ok := features.OLS(logN, logRS)
	if !ok || !features.Finite(fit.Slope) {
		return 0.5
	}
	return math.Max(0, math.Min(1, fit.Slope))
}

// meanRescaledRange averages R/S over non-overlapping chunks of size n, skipping chunks
// with no dispersion.
func meanRescaledRange(xs []float64, n int) (float64, bool) {
	chunks := len(xs) / n
	total, used := 0.0, 0
	for k := 0; k < chunks; k++ {
		chunk := xs[k*n : (k+1)*n]
		mean := features.Mean(chunk)
		sd := features.StdDev(chunk)
		if sd == 0 {
			continue
		}
		cum, lo, hi := 0.0, 0.0, 0.0
		for _, x := range chunk {
			cum += x - mean
			lo = math.Min(lo, cum)
			hi = math.Max(hi, cum)
		}
		if r := hi - lo; r > 0 {
			total += r / sd
			used++
		}
	}
	if used == 0 {
		return 0, false
	}
	return total / float64(used), true
}

// HurstRegime classifies an exponent.
func HurstRegime(h float64) string {
	switch {
	case h > 0.6:
		return Trending
	case h < 0.4:
		return MeanReverting
	}
	return RandomWalk
}
