package strategy

import (
	"fmt"
	"math"
	"sort"

	"FactorLab/internal/domain/models"
)

// Validate checks a condition tree without evaluating it.
func Validate(root models.ConditionNode) error {
	if root == nil {
		return &StrategyConfigurationError{Path: "conditions", Msg: "missing condition tree"}
	}
	return validateNode(root, "conditions")
}

// ValidateStrategy checks identity fields and the condition tree.
func ValidateStrategy(s *models.Strategy) error {
	if s == nil {
		return &StrategyConfigurationError{Msg: "strategy is nil"}
	}
	if s.ID == "" {
		return &StrategyConfigurationError{Path: "id", Msg: "required"}
	}
	switch s.Status {
	case models.StrategyActive, models.StrategyInactive, models.StrategyDraft, "":
	default:
		return &StrategyConfigurationError{Path: "status", Msg: fmt.Sprintf("unknown status %q", s.Status)}
	}
	return Validate(s.Conditions)
}

func validateNode(n models.ConditionNode, path string) error {
	switch node := n.(type) {
	case *models.LogicNode:
		if node == nil {
			return &StrategyConfigurationError{Path: path, Msg: "nil logic node"}
		}
		if node.Logic != models.LogicAnd && node.Logic != models.LogicOr {
			return &StrategyConfigurationError{Path: path, Msg: fmt.Sprintf("logic must be AND or OR, got %q", node.Logic)}
		}
		for i, child := range node.Conditions {
			if child == nil {
				return &StrategyConfigurationError{Path: fmt.Sprintf("%s.conditions[%d]", path, i), Msg: "nil condition"}
			}
			if err := validateNode(child, fmt.Sprintf("%s.conditions[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case *models.LeafNode:
		if node == nil {
			return &StrategyConfigurationError{Path: path, Msg: "nil leaf"}
		}
		return validateLeaf(node, path)
	}
	return &StrategyConfigurationError{Path: path, Msg: fmt.Sprintf("unsupported node %T", n)}
}

func validateLeaf(l *models.LeafNode, path string) error {
	bad := func(format string, args ...interface{}) error {
		return &StrategyConfigurationError{Path: path, Msg: fmt.Sprintf(format, args...)}
	}
	if l.FactorID == "" {
		return bad("factor_id is required")
	}
	if !l.Operator.Known() {
		return bad("unknown operator %q", l.Operator)
	}
	th := l.Threshold
	switch l.Operator {
	case models.OpBetween:
		if th.Min == nil || th.Max == nil {
			return bad("BETWEEN needs value {min, max}")
		}
		if !finite(*th.Min) || !finite(*th.Max) {
			return bad("BETWEEN bounds must be finite")
		}
		if *th.Min > *th.Max {
			return bad("BETWEEN min %v greater than max %v", *th.Min, *th.Max)
		}
	case models.OpIn:
		if len(th.Set) == 0 {
			return bad("IN needs a non-empty value list")
		}
		for _, v := range th.Set {
			if !finite(v) {
				return bad("IN values must be finite")
			}
		}
	default:
		if th.Scalar == nil {
			return bad("%s needs a numeric value", l.Operator)
		}
		if !finite(*th.Scalar) {
			return bad("value must be finite")
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FactorIDs lists the distinct factors a condition tree reads, sorted.
func FactorIDs(root models.ConditionNode) []string {
	seen := map[string]bool{}
	var walk func(models.ConditionNode)
	walk = func(n models.ConditionNode) {
		switch node := n.(type) {
		case *models.LogicNode:
			if node == nil {
				return
			}
			for _, c := range node.Conditions {
				walk(c)
			}
		case *models.LeafNode:
			if node != nil && node.FactorID != "" {
				seen[node.FactorID] = true
			}
		}
	}
	walk(root)
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
