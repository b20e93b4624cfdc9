package calculators

import (
	"fmt"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
	"FactorLab/pkg/util"
)

// Classification labels shared by oscillators.
const (
	Overbought = "OVERBOUGHT"
	Oversold   = "OVERSOLD"
	Neutral    = "NEUTRAL"
	Normal     = "NORMAL"
)

func meta(name string, cat models.Category, label string, minPoints int, prio models.Priority, defaults factor.Params, cols ...string) models.CalculatorMetadata {
	return models.CalculatorMetadata{
		Name:            name,
		Category:        cat,
		Label:           label,
		MinDataPoints:   minPoints,
		DefaultParams:   defaults,
		Priority:        prio,
		RequiredColumns: cols,
	}
}

// periodPlus returns a requirement func of params[key] + extra points.
func periodPlus(key string, def, extra int) func(factor.Params) int {
	return func(p factor.Params) int { return p.Int(key, def) + extra }
}

// band classifies v against an upper and lower threshold.
func band(v, upper, lower float64, above, below, mid string) string {
	switch {
	case v > upper:
		return above
	case v < lower:
		return below
	}
	return mid
}

func keyed(prefix string, n int) string { return fmt.Sprintf("%s_%d", prefix, n) }

func lastDate(s *models.Series) string { return util.FormatDate(s.LastDate()) }

// aligned reports whether every column has at least n values.
func aligned(n int, cols ...[]float64) bool {
	if n <= 0 {
		return false
	}
	for _, c := range cols {
		if len(c) < n {
			return false
		}
	}
	return true
}
