package calculators

import (
	"math"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
)

// Candlestick pattern names.
const (
	PatternDoji             = "doji"
	PatternHammer           = "hammer"
	PatternShootingStar     = "shooting_star"
	PatternBullishEngulfing = "bullish_engulfing"
	PatternBearishEngulfing = "bearish_engulfing"
)

var patternDirection = map[string]string{
	PatternDoji:             models.DirectionNeutral,
	PatternHammer:           models.DirectionBullish,
	PatternShootingStar:     models.DirectionBearish,
	PatternBullishEngulfing: models.DirectionBullish,
	PatternBearishEngulfing: models.DirectionBearish,
}

var patternOrder = []string{
	PatternDoji, PatternHammer, PatternShootingStar, PatternBullishEngulfing, PatternBearishEngulfing,
}

// Candlestick flags single and two-bar reversal patterns on the latest bar.
type Candlestick struct{ factor.Base }

func NewCandlestick() *Candlestick {
	return &Candlestick{factor.NewBase(
		meta("candlestick", models.CategoryPattern, "Candlestick patterns", 2, models.P2,
			factor.Params{"doji_body": 0.1, "shadow_ratio": 2},
			models.ColOpen, models.ColHigh, models.ColLow, models.ColClose), nil)}
}

func (c *Candlestick) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	flags, ok := c.flags(s, p)
	if !ok {
		return models.Values{}, nil
	}
	out := models.Values{}
	for _, name := range patternOrder {
		v := 0.0
		if flags[name] {
			v = 1
		}
		out[name] = v
	}
	return out, nil
}

func (c *Candlestick) Detect(s *models.Series, p factor.Params) ([]models.DetectedSignal, error) {
	flags, ok := c.flags(s, p)
	if !ok {
		return nil, nil
	}
	var out []models.DetectedSignal
	for _, name := range patternOrder {
		if !flags[name] {
			continue
		}
		out = append(out, models.DetectedSignal{
			Source:    c.Name(),
			Type:      name,
			Direction: patternDirection[name],
			Strength:  1,
			Date:      lastDate(s),
		})
	}
	return out, nil
}

func (c *Candlestick) flags(s *models.Series, p factor.Params) (map[string]bool, bool) {
	o, h, l, cl := s.Column(models.ColOpen), s.Column(models.ColHigh), s.Column(models.ColLow), s.Column(models.ColClose)
	if !aligned(2, o, h, l, cl) {
		return nil, false
	}
	i := len(cl) - 1
	body := math.Abs(cl[i] - o[i])
	rng := h[i] - l[i]
	upper := h[i] - math.Max(o[i], cl[i])
	lower := math.Min(o[i], cl[i]) - l[i]
	ratio := p.Float("shadow_ratio", 2)

	f := map[string]bool{}
	if rng > 0 {
		f[PatternDoji] = body <= p.Float("doji_body", 0.1)*rng
	}
	if body > 0 {
		f[PatternHammer] = lower >= ratio*body && upper <= body*0.5
		f[PatternShootingStar] = upper >= ratio*body && lower <= body*0.5
	}
	po, pc := o[i-1], cl[i-1]
	f[PatternBullishEngulfing] = pc < po && cl[i] > o[i] && o[i] <= pc && cl[i] >= po
	f[PatternBearishEngulfing] = pc > po && cl[i] < o[i] && o[i] >= pc && cl[i] <= po
	return f, true
}
