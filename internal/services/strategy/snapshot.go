package strategy

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"FactorLab/internal/domain/models"
)

// ScoreFactor is the snapshot key of a Result's composite score.
const ScoreFactor = "composite_score"

// SnapshotFromResults flattens the numeric values of results into one snapshot. Categories
// are applied in canonical order and later results overwrite earlier ones.
func SnapshotFromResults(results ...*models.Result) models.FactorSnapshot {
	snap := models.FactorSnapshot{}
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, c := range models.Categories {
			for k, v := range CoerceValues(r.Factors[c]) {
				snap[k] = v
			}
		}
		if r.Score != nil {
			snap[ScoreFactor] = *r.Score
		}
	}
	return snap
}

// Merge overlays extra onto into and returns into. A nil into is allocated.
func Merge(into, extra models.FactorSnapshot) models.FactorSnapshot {
	if into == nil {
		into = models.FactorSnapshot{}
	}
	for k, v := range extra {
		into[k] = v
	}
	return into
}

// CoerceValues keeps the entries of m that are numbers, booleans (1/0) or numeric strings.
// Non-finite numbers and labels are dropped.
func CoerceValues(m map[string]interface{}) models.FactorSnapshot {
	out := make(models.FactorSnapshot, len(m))
	for k, v := range m {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case bool:
		if x {
			f = 1
		}
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
