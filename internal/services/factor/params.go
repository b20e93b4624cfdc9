package factor

import "math"

// Params are numeric calculator parameters such as periods and thresholds.
type Params map[string]float64

// Well-known parameter keys.
const (
	ParamPeriod   = "period"
	ParamLookback = "lookback"
)

// Float returns the value for key or def.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok && !math.IsNaN(v) {
		return v
	}
	return def
}

// Int returns the value for key truncated to int, or def.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return int(v)
	}
	return def
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Params with over applied on top of p.
func (p Params) Merge(over Params) Params {
	out := p.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}
