package calculators

import (
	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/features"
)

var institutionColumns = []string{models.ColForeignNet, models.ColTrustNet, models.ColDealerNet}

// InstitutionalFlow reports the latest daily net buy of each institution type plus rolling
// sums. Only foreign flow is mandatory; trust and dealer are used when present.
type InstitutionalFlow struct{ factor.Base }

func NewInstitutionalFlow() *InstitutionalFlow {
	return &InstitutionalFlow{factor.NewBase(
		meta("institutional_flow", models.CategoryInstitutional, "Institutional net flow", 1, models.P0,
			factor.Params{"window": 5}, models.ColForeignNet), nil)}
}

func (c *InstitutionalFlow) Calculate(s *models.Series, p factor.Params) (models.Values, error) {
	w := p.Int("window", 5)
	out := models.Values{}
	total, seen := 0.0, 0
	for _, col := range institutionColumns {
		xs := s.Column(col)
		if len(xs) == 0 {
			continue
		}
		last := features.Last(xs)
		out[col] = last
		total += last
		seen++
		if win := features.Window(xs, w); win != nil {
			out[keyed(col, w)+"d"] = features.Sum(win)
		}
	}
	if seen > 0 {
		out["institutional_net"] = total
	}
	return out, nil
}

// ContinuousDays counts consecutive buy (+) or sell (-) days at the tail for each
// institution type.
type ContinuousDays struct{ factor.Base }

func NewContinuousDays() *ContinuousDays {
	return &ContinuousDays{factor.NewBase(
		meta("continuous_days", models.CategoryInstitutional, "Continuous buy/sell days", 1, models.P1,
			nil, models.ColForeignNet), nil)}
}

func (c *ContinuousDays) Calculate(s *models.Series, _ factor.Params) (models.Values, error) {
	out := models.Values{}
	for _, col := range institutionColumns {
		xs := s.Column(col)
		if len(xs) == 0 {
			continue
		}
		prefix := col[:len(col)-len("_net")]
		out[prefix+"_continuous_days"] = float64(features.ConsecutiveSign(xs))
	}
	return out, nil
}
