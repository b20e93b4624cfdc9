package factor

import (
	"math"

	"FactorLab/internal/domain/models"
)

// Scorer derives an optional 0-100 score and letter grade from a Result.
type Scorer interface {
	Score(res *models.Result) (score float64, grade string, ok bool)
}

type scoreRule struct {
	factor string
	weight float64
	points func(v float64) float64 // in [-1, 1]
}

var compositeRules = []scoreRule{
	{"close_vs_ma_20", 10, func(v float64) float64 { return clampUnit(v / 5) }},
	{"ma_cross", 10, func(v float64) float64 { return clampUnit(v) }},
	{"lr_slope", 10, func(v float64) float64 { return sign(v) }},
	{"macd_hist", 5, func(v float64) float64 { return sign(v) }},
	{"rsi_14", 10, func(v float64) float64 {
		switch {
		case v > 80:
			return -0.5
		case v >= 50:
			return 1
		case v < 20:
			return -0.5
		default:
			return -1 + v/50
		}
	}},
	{"kd_k", 5, func(v float64) float64 { return clampUnit((v - 50) / 50) }},
	{"institutional_net", 10, func(v float64) float64 { return sign(v) }},
	{"foreign_continuous_days", 5, func(v float64) float64 { return clampUnit(v / 5) }},
	{"margin_change_pct", 5, func(v float64) float64 { return -clampUnit(v / 5) }},
}

// CompositeScorer blends trend, momentum and flow factors around a neutral 50.
// Factors missing from the result are skipped; no score is produced if none are present.
type CompositeScorer struct{}

func (CompositeScorer) Score(res *models.Result) (float64, string, bool) {
	var total, weight float64
	for _, r := range compositeRules {
		v, ok := res.Float(r.factor)
		if !ok || math.IsNaN(v) {
			continue
		}
		total += r.weight * r.points(v)
		weight += r.weight
	}
	if weight == 0 {
		return 0, "", false
	}
	score := 50 + 50*total/weight
	score = math.Max(0, math.Min(100, math.Round(score*100)/100))
	return score, Grade(score), true
}

// Grade maps a 0-100 score to A-E.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 65:
		return "B"
	case score >= 50:
		return "C"
	case score >= 35:
		return "D"
	default:
		return "E"
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clampUnit(v float64) float64 { return math.Max(-1, math.Min(1, v)) }
