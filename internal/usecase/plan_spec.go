package usecase

import (
	"fmt"
	"strings"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/factor"
)

// Plan presets accepted by PlanSpec.
const (
	PresetDefault = "default"
	PresetFull    = "full"
)

// PlanSpec is the wire form of factor.Plan used by the API and job payloads.
type PlanSpec struct {
	Preset       string                        `json:"preset,omitempty" validate:"omitempty,oneof=default full"`
	Categories   []string                      `json:"categories,omitempty"`
	Calculators  []string                      `json:"calculators,omitempty"`
	LookbackDays int                           `json:"lookback_days,omitempty" validate:"omitempty,gte=1,lte=2000"`
	MaxPriority  string                        `json:"max_priority,omitempty" validate:"omitempty,oneof=P0 P1 P2"`
	Params       map[string]map[string]float64 `json:"params,omitempty"`
	Score        *bool                         `json:"score,omitempty"`
}

// Build resolves the spec into a Plan. Explicit calculators replace the preset selection;
// categories are added on top of it.
func (s *PlanSpec) Build() (factor.Plan, error) {
	if s == nil {
		s = &PlanSpec{}
	}
	var plan factor.Plan
	switch strings.ToLower(s.Preset) {
	case "", PresetDefault:
		plan = factor.DefaultPlan()
	case PresetFull:
		plan = factor.FullPlan()
	default:
		return factor.Plan{}, fmt.Errorf("unknown plan preset %q", s.Preset)
	}

	if len(s.Calculators) > 0 {
		score := plan.Score
		plan = factor.PlanOf(s.Calculators...).WithScore(score)
	}
	if len(s.Categories) > 0 {
		cats := make([]models.Category, 0, len(s.Categories))
		for _, raw := range s.Categories {
			c, err := models.ParseCategory(raw)
			if err != nil {
				return factor.Plan{}, err
			}
			cats = append(cats, c)
		}
		plan = plan.WithCategories(cats...)
	}
	if s.LookbackDays > 0 {
		plan = plan.WithLookback(s.LookbackDays)
	}
	if s.MaxPriority != "" {
		p, err := models.ParsePriority(s.MaxPriority)
		if err != nil {
			return factor.Plan{}, err
		}
		plan = plan.WithMaxPriority(p)
	}
	for name, params := range s.Params {
		plan = plan.WithParams(name, params)
	}
	if s.Score != nil {
		plan = plan.WithScore(*s.Score)
	}
	return plan, plan.Validate()
}
