package calculators

import (
	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// RSI uses Wilder smoothing seeded with the simple average of the first period changes.
type RSI struct{ factor.Base }

func NewRSI() *RSI {
	return &RSI{factor.NewBase(
		meta("rsi", models.CategoryMomentum, "Relative strength index", 15, models.P0,
			factor.Params{factor.ParamPeriod: 14, "overbought": 70, "oversold": 30}, models.ColClose),
		periodPlus(factor.ParamPeriod, 14, 1))}
}

func (c *RSI) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 14)
	closes := s.Column(models.ColClose)
	if n <= 0 || len(closes) < n+1 {
		return models.Values{}, nil
	}
	rsi := WilderRSI(closes, n)
	return models.Values{
		keyed("rsi", n): rsi,
		"rsi_signal":    band(rsi, p.Float("overbought", 70), p.Float("oversold", 30), Overbought, Oversold, Neutral),
	}, nil
}

// WilderRSI returns the latest RSI. A series with no losses reads 100, one with no
// movement at all reads 50.
func WilderRSI(closes []float64, period int) float64 {
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// KD is the stochastic oscillator with 1/3 smoothing of RSV into K and K into D,
// both starting at 50.
type KD struct{ factor.Base }

func NewKD() *KD {
	return &KD{factor.NewBase(
		meta("kd", models.CategoryMomentum, "Stochastic KD", 9, models.P0,
			factor.Params{factor.ParamPeriod: 9, "overbought": 80, "oversold": 20},
			models.ColHigh, models.ColLow, models.ColClose),
		periodPlus(factor.ParamPeriod, 9, 0))}
}

func (c *KD) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 9)
	high, low, closes := s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if !aligned(n, high, low, closes) || len(closes) < n {
		return models.Values{}, nil
	}
	k, d := 50.0, 50.0
	for i := n - 1; i < len(closes); i++ {
		lo, _ := features.MinMax(low[i-n+1 : i+1])
		_, hi := features.MinMax(high[i-n+1 : i+1])
		rsv := 50.0
		if hi > lo {
			rsv = (closes[i] - lo) / (hi - lo) * 100
		}
		k = k*2/3 + rsv/3
		d = d*2/3 + k/3
	}
	return models.Values{
		"kd_k":      k,
		"kd_d":      d,
		"kd_signal": band(k, p.Float("overbought", 80), p.Float("oversold", 20), Overbought, Oversold, Neutral),
	}, nil
}

// CCI is the commodity channel index over typical prices.
type CCI struct{ factor.Base }

func NewCCI() *CCI {
	return &CCI{factor.NewBase(
		meta("cci", models.CategoryMomentum, "Commodity channel index", 20, models.P1,
			factor.Params{factor.ParamPeriod: 20, "overbought": 100, "oversold": -100},
			models.ColHigh, models.ColLow, models.ColClose),
		periodPlus(factor.ParamPeriod, 20, 0))}
}

func (c *CCI) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 20)
	high, low, closes := s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if !aligned(n, high, low, closes) {
		return models.Values{}, nil
	}
	start := len(closes) - n
	tp := make([]float64, n)
	for i := range tp {
		j := start + i
		tp[i] = (high[j] + low[j] + closes[j]) / 3
	}
	mean := features.Mean(tp)
	md := 0.0
	for _, v := range tp {
		if v > mean {
			md += v - mean
		} else {
			md += mean - v
		}
	}
	md /= float64(n)
	cci := 0.0
	if md > 0 {
		cci = (tp[n-1] - mean) / (0.015 * md)
	}
	return models.Values{
		keyed("cci", n): cci,
		"cci_signal":    band(cci, p.Float("overbought", 100), p.Float("oversold", -100), Overbought, Oversold, Neutral),
	}, nil
}

// WilliamsR reads -100..0, where -20 and above is overbought and -80 and below oversold.
type WilliamsR struct{ factor.Base }

func NewWilliamsR() *WilliamsR {
	return &WilliamsR{factor.NewBase(
		meta("williams_r", models.CategoryMomentum, "Williams %R", 14, models.P1,
			factor.Params{factor.ParamPeriod: 14, "overbought": -20, "oversold": -80},
			models.ColHigh, models.ColLow, models.ColClose),
		periodPlus(factor.ParamPeriod, 14, 0))}
}

func (c *WilliamsR) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 14)
	high, low, closes := s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if !aligned(n, high, low, closes) {
		return models.Values{}, nil
	}
	_, hh := features.MinMax(features.Window(high, n))
	ll, _ := features.MinMax(features.Window(low, n))
	wr := -50.0
	if hh > ll {
		wr = (hh - features.Last(closes)) / (hh - ll) * -100
	}
	signal := Neutral
	switch {
	case wr >= p.Float("overbought", -20):
		signal = Overbought
	case wr <= p.Float("oversold", -80):
		signal = Oversold
	}
	return models.Values{
		keyed("williams_r", n): wr,
		"williams_r_signal":    signal,
	}, nil
}

// VolumeRatio compares the latest volume with the average of the preceding period days.
type VolumeRatio struct{ factor.Base }

func NewVolumeRatio() *VolumeRatio {
	return &VolumeRatio{factor.NewBase(
		meta("volume_ratio", models.CategoryMomentum, "Volume ratio", 6, models.P0,
			factor.Params{factor.ParamPeriod: 5}, models.ColVolume),
		periodPlus(factor.ParamPeriod, 5, 1))}
}

func (c *VolumeRatio) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	n := p.Int(factor.ParamPeriod, 5)
	vol := s.Column(models.ColVolume)
	if n <= 0 || len(vol) < n+1 {
		return models.Values{}, nil
	}
	avg := features.Mean(vol[len(vol)-n-1 : len(vol)-1])
	if avg <= 0 {
		return models.Values{}, nil
	}
	return models.Values{"volume_ratio": features.Last(vol) / avg}, nil
}
