package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"FactorLab/internal/domain/models"
	"FactorLab/pkg/logger"
)

// comparePlaces is the precision both sides are rounded to before comparison, so values
// that went through float arithmetic still compare equal to authored thresholds.
const comparePlaces = 8

// ConditionEvaluator evaluates condition trees against factor snapshots. It is stateless.
type ConditionEvaluator struct {
	log *logger.Logger
}

func NewConditionEvaluator(log *logger.Logger) *ConditionEvaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &ConditionEvaluator{log: log}
}

// Evaluate validates root and then evaluates every node. Logic nodes never short-circuit,
// so the returned trail lists every leaf in depth-first order.
func (e *ConditionEvaluator) Evaluate(root models.ConditionNode, snap models.FactorSnapshot) (models.EvaluationResult, error) {
	if err := Validate(root); err != nil {
		return models.EvaluationResult{}, err
	}
	trail := make([]models.MatchedCondition, 0, 8)
	matched := e.eval(root, snap, &trail)
	return models.EvaluationResult{Matched: matched, MatchedConditions: trail}, nil
}

func (e *ConditionEvaluator) eval(n models.ConditionNode, snap models.FactorSnapshot, trail *[]models.MatchedCondition) bool {
	switch node := n.(type) {
	case *models.LogicNode:
		all, some := true, false
		for _, child := range node.Conditions {
			ok := e.eval(child, snap, trail)
			all = all && ok
			some = some || ok
		}
		if len(node.Conditions) == 0 {
			return true
		}
		if node.Logic == models.LogicOr {
			return some
		}
		return all
	case *models.LeafNode:
		mc := e.evalLeaf(node, snap)
		*trail = append(*trail, mc)
		return mc.Matched
	}
	return false
}

func (e *ConditionEvaluator) evalLeaf(l *models.LeafNode, snap models.FactorSnapshot) models.MatchedCondition {
	mc := models.MatchedCondition{
		FactorID:    l.FactorID,
		Operator:    l.Operator,
		Threshold:   l.Threshold,
		Description: l.Description,
	}
	v, ok := snap[l.FactorID]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		e.log.Debug("condition factor unavailable", logger.Error(&UnknownFactorError{FactorID: l.FactorID}))
		return mc
	}
	val := v
	mc.FactorValue = &val
	mc.Matched = Compare(l.Operator, v, l.Threshold)
	return mc
}

// Compare applies op to a finite value. Equality operators compare after rounding to
// comparePlaces decimals; ordering operators and BETWEEN use the exact values. CROSS_ABOVE
// and CROSS_BELOW need history a snapshot does not carry and are always false.
func Compare(op models.Operator, v float64, th models.Threshold) bool {
	switch op {
	case models.OpBetween:
		if th.Min == nil || th.Max == nil {
			return false
		}
		return v >= *th.Min && v <= *th.Max
	case models.OpIn:
		d := num(v)
		for _, s := range th.Set {
			if d.Equal(num(s)) {
				return true
			}
		}
		return false
	case models.OpCrossAbove, models.OpCrossBelow:
		return false
	}
	if th.Scalar == nil {
		return false
	}
	t := *th.Scalar
	switch op {
	case models.OpEqual:
		return num(v).Equal(num(t))
	case models.OpNotEqual:
		return !num(v).Equal(num(t))
	case models.OpGreaterThan:
		return v > t
	case models.OpGreaterThanEqual:
		return v >= t
	case models.OpLessThan:
		return v < t
	case models.OpLessThanEqual:
		return v <= t
	}
	return false
}

func num(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(comparePlaces)
}
