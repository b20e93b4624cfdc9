package calculators

import (
	"fmt"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// baseline splits xs into the window before the last value and the last value.
func baseline(xs []float64, window int) ([]float64, float64, bool) {
	if window < 2 || len(xs) < window+1 {
		return nil, 0, false
	}
	n := len(xs)
	return xs[n-window-1 : n-1], xs[n-1], true
}

// outlier returns the z-score of last against the window and whether it exceeds k sigmas.
func outlier(window []float64, last, k float64) (z float64, above, below bool) {
	mean, sd := features.Mean(window), features.StdDev(window)
	if sd == 0 {
		return 0, false, false
	}
	z = (last - mean) / sd
	return z, last > mean+k*sd, last < mean-k*sd
}

// ForeignOutlier flags a foreign net buy (or sell) beyond k standard deviations of the
// previous window days.
type ForeignOutlier struct{ factor.Base }

func NewForeignOutlier() *ForeignOutlier {
	return &ForeignOutlier{factor.NewBase(
		meta("foreign_outlier", models.CategorySignal, "Foreign net outlier", 21, models.P1,
			factor.Params{"window": 20, "k": 2}, models.ColForeignNet),
		periodPlus("window", 20, 1))}
}

func (c *ForeignOutlier) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	win, last, ok := baseline(s.Column(models.ColForeignNet), p.Int("window", 20))
	if !ok {
		return models.Values{}, nil
	}
	z, above, below := outlier(win, last, p.Float("k", 2))
	return models.Values{
		"foreign_net_zscore":  z,
		"foreign_net_outlier": boolFlag(above) - boolFlag(below),
	}, nil
}

func (c *ForeignOutlier) Detect(s *models.Series, p factor.Params) ([]models.DetectedSignal, error) {
	win, last, ok := baseline(s.Column(models.ColForeignNet), p.Int("window", 20))
	if !ok {
		return nil, nil
	}
	k := p.Float("k", 2)
	z, above, below := outlier(win, last, k)
	if !above && !below {
		return nil, nil
	}
	dir := models.DirectionBullish
	if below {
		dir = models.DirectionBearish
	}
	return []models.DetectedSignal{{
		Source:    c.Name(),
		Type:      "FOREIGN_NET_OUTLIER",
		Direction: dir,
		Strength:  z,
		Date:      lastDate(s),
		Message:   fmt.Sprintf("foreign net %.0f is %.2f sigma from the %d-day mean", last, z, len(win)),
		Values: map[string]float64{
			"foreign_net": last,
			"mean":        features.Mean(win),
			"stddev":      features.StdDev(win),
		},
	}}, nil
}

// VolumeSpike flags volume beyond k standard deviations of the previous window days.
// Direction follows the day's price move when closes are available.
type VolumeSpike struct{ factor.Base }

func NewVolumeSpike() *VolumeSpike {
	return &VolumeSpike{factor.NewBase(
		meta("volume_spike", models.CategorySignal, "Volume spike", 21, models.P1,
			factor.Params{"window": 20, "k": 2}, models.ColVolume),
		periodPlus("window", 20, 1))}
}

func (c *VolumeSpike) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	win, last, ok := baseline(s.Column(models.ColVolume), p.Int("window", 20))
	if !ok {
		return models.Values{}, nil
	}
	z, above, _ := outlier(win, last, p.Float("k", 2))
	return models.Values{
		"volume_zscore": z,
		"volume_spike":  boolFlag(above),
	}, nil
}

func (c *VolumeSpike) Detect(s *models.Series, p factor.Params) ([]models.DetectedSignal, error) {
	win, last, ok := baseline(s.Column(models.ColVolume), p.Int("window", 20))
	if !ok {
		return nil, nil
	}
	z, above, _ := outlier(win, last, p.Float("k", 2))
	if !above {
		return nil, nil
	}
	dir := models.DirectionNeutral
	if closes := s.Column(models.ColClose); len(closes) >= 2 {
		switch d := closes[len(closes)-1] - closes[len(closes)-2]; {
		case d > 0:
			dir = models.DirectionBullish
		case d < 0:
			dir = models.DirectionBearish
		}
	}
	return []models.DetectedSignal{{
		Source:    c.Name(),
		Type:      "VOLUME_SPIKE",
		Direction: dir,
		Strength:  z,
		Date:      lastDate(s),
		Values:    map[string]float64{"volume": last, "mean": features.Mean(win)},
	}}, nil
}

// PriceBreakout flags a close above the prior window high or below the prior window low.
type PriceBreakout struct{ factor.Base }

func NewPriceBreakout() *PriceBreakout {
	return &PriceBreakout{factor.NewBase(
		meta("price_breakout", models.CategorySignal, "Price breakout", 21, models.P1,
			factor.Params{"window": 20}, models.ColHigh, models.ColLow, models.ColClose),
		periodPlus("window", 20, 1))}
}

func (c *PriceBreakout) levels(s *models.Series, p factor.Params) (hi, lo, last float64, ok bool) {
	w := p.Int("window", 20)
	high, low, closes := s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if w < 1 || !aligned(w+1, high, low, closes) {
		return 0, 0, 0, false
	}
	n := len(closes)
	_, hi = features.MinMax(high[n-w-1 : n-1])
	lo, _ = features.MinMax(low[n-w-1 : n-1])
	return hi, lo, closes[n-1], true
}

func (c *PriceBreakout) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	hi, lo, last, ok := c.levels(s, p)
	if !ok {
		return models.Values{}, nil
	}
	w := p.Int("window", 20)
	return models.Values{
		keyed("breakout_high", w): hi,
		keyed("breakout_low", w):  lo,
		"breakout":                boolFlag(last > hi) - boolFlag(last < lo),
	}, nil
}

func (c *PriceBreakout) Detect(s *models.Series, p factor.Params) ([]models.DetectedSignal, error) {
	hi, lo, last, ok := c.levels(s, p)
	if !ok || (last <= hi && last >= lo) {
		return nil, nil
	}
	sig := models.DetectedSignal{
		Source: c.Name(),
		Date:   lastDate(s),
		Values: map[string]float64{"close": last, "high": hi, "low": lo},
	}
	if last > hi {
		sig.Type, sig.Direction = "BREAKOUT_HIGH", models.DirectionBullish
		if hi != 0 {
			sig.Strength = (last/hi - 1) * 100
		}
	} else {
		sig.Type, sig.Direction = "BREAKDOWN_LOW", models.DirectionBearish
		if lo != 0 {
			sig.Strength = (1 - last/lo) * 100
		}
	}
	return []models.DetectedSignal{sig}, nil
}

func boolFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
