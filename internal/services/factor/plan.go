package factor

import (
	"fmt"

	"FactorLab/internal/domain/models"
)

const (
	DefaultLookback = 60
	FullLookback    = 120
)

// Plan selects what the engine runs. It is a value: builder methods return copies and
// the engine never mutates it.
type Plan struct {
	Categories   map[models.Category]bool
	Calculators  []string
	Params       map[string]Params
	LookbackDays int
	MaxPriority  models.Priority
	Score        bool
}

// DefaultPlan runs the core categories plus signal detection over a 60 day window.
func DefaultPlan() Plan {
	return Plan{
		Categories: map[models.Category]bool{
			models.CategoryTrend:       true,
			models.CategoryMomentum:    true,
			models.CategoryVolatility:  true,
			models.CategoryStatistical: true,
			models.CategorySignal:      true,
		},
		LookbackDays: DefaultLookback,
		MaxPriority:  models.P1,
		Score:        true,
	}
}

// FullPlan runs every category and tier over a 120 day window.
func FullPlan() Plan {
	cats := make(map[models.Category]bool, len(models.Categories))
	for _, c := range models.Categories {
		cats[c] = true
	}
	return Plan{
		Categories:   cats,
		LookbackDays: FullLookback,
		MaxPriority:  models.P2,
		Score:        true,
	}
}

// PlanOf runs exactly the named calculators with their default parameters.
func PlanOf(names ...string) Plan {
	return Plan{
		Calculators:  append([]string(nil), names...),
		LookbackDays: DefaultLookback,
		MaxPriority:  models.P2,
	}
}

func (p Plan) clone() Plan {
	out := p
	out.Categories = make(map[models.Category]bool, len(p.Categories))
	for k, v := range p.Categories {
		out.Categories[k] = v
	}
	out.Calculators = append([]string(nil), p.Calculators...)
	out.Params = make(map[string]Params, len(p.Params))
	for k, v := range p.Params {
		out.Params[k] = v.Clone()
	}
	return out
}

// WithParams overrides parameters for one calculator.
func (p Plan) WithParams(calculator string, params Params) Plan {
	out := p.clone()
	out.Params[calculator] = out.Params[calculator].Merge(params)
	return out
}

// WithLookback sets the lookback window.
func (p Plan) WithLookback(days int) Plan {
	out := p.clone()
	out.LookbackDays = days
	return out
}

// WithMaxPriority limits the plan to tiers up to and including tier.
func (p Plan) WithMaxPriority(tier models.Priority) Plan {
	out := p.clone()
	out.MaxPriority = tier
	return out
}

// WithCategories enables the given categories in addition to those already on.
func (p Plan) WithCategories(cats ...models.Category) Plan {
	out := p.clone()
	for _, c := range cats {
		out.Categories[c] = true
	}
	return out
}

// WithScore toggles derived score/grade.
func (p Plan) WithScore(on bool) Plan {
	out := p.clone()
	out.Score = on
	return out
}

// Enabled reports whether the category is switched on.
func (p Plan) Enabled(c models.Category) bool { return p.Categories[c] }

// Validate rejects plans the engine cannot run.
func (p Plan) Validate() error {
	if p.LookbackDays <= 0 {
		return fmt.Errorf("plan lookback must be positive, got %d", p.LookbackDays)
	}
	if p.MaxPriority < models.P0 || p.MaxPriority > models.P2 {
		return fmt.Errorf("plan max priority %s out of range", p.MaxPriority)
	}
	for c := range p.Categories {
		if !c.Valid() {
			return fmt.Errorf("plan category %q unknown", c)
		}
	}
	return nil
}

// ParamsFor resolves the effective parameters of c: defaults, then the plan lookback for
// calculators that declare one, then explicit overrides.
func (p Plan) ParamsFor(c Calculator) Params {
	params := Params(c.Metadata().DefaultParams).Clone()
	if _, ok := params[ParamLookback]; ok && p.LookbackDays > 0 {
		params[ParamLookback] = float64(p.LookbackDays)
	}
	return params.Merge(p.Params[c.Name()])
}

// selection resolves the calculators to run, in execution order, and any unknown names.
func (p Plan) selection(reg *Registry) ([]Calculator, []string) {
	var (
		out     []Calculator
		unknown []string
	)
	if len(p.Calculators) > 0 {
		seen := make(map[string]bool, len(p.Calculators))
		for _, name := range p.Calculators {
			if seen[name] {
				continue
			}
			seen[name] = true
			c, ok := reg.Get(name)
			if !ok {
				unknown = append(unknown, name)
				continue
			}
			if c.Metadata().Priority <= p.MaxPriority {
				out = append(out, c)
			}
		}
		return out, unknown
	}
	for _, cat := range models.Categories {
		if !p.Enabled(cat) {
			continue
		}
		for _, c := range reg.ByCategory(cat) {
			if c.Metadata().Priority <= p.MaxPriority {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
