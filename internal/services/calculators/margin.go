package calculators

import (
	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

// MarginChange tracks margin purchase and short sale balances.
type MarginChange struct{ factor.Base }

func NewMarginChange() *MarginChange {
	return &MarginChange{factor.NewBase(
		meta("margin_change", models.CategoryMargin, "Margin balance change", 2, models.P1,
			nil, models.ColMarginBalance), nil)}
}

func (c *MarginChange) Calculate(s *models.Series, _ factor.Params) (models.Values, error) {
	margin := s.Column(models.ColMarginBalance)
	if len(margin) < 2 {
		return models.Values{}, nil
	}
	n := len(margin)
	last, prev := margin[n-1], margin[n-2]
	out := models.Values{
		"margin_balance":         last,
		"margin_change":          last - prev,
		"margin_continuous_days": float64(features.ConsecutiveSign(diffs(margin))),
	}
	if prev != 0 {
		out["margin_change_pct"] = (last - prev) / prev * 100
	}

	short := s.Column(models.ColShortBalance)
	if len(short) == n {
		out["short_balance"] = short[n-1]
		out["short_change"] = short[n-1] - short[n-2]
		if last > 0 {
			out["short_margin_ratio"] = short[n-1] / last * 100
		}
	}
	return out, nil
}

func diffs(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}
