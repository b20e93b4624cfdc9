package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Logic combines child conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator compares a factor value with a threshold.
type Operator string

const (
	OpEqual            Operator = "EQUAL"
	OpNotEqual         Operator = "NOT_EQUAL"
	OpGreaterThan      Operator = "GREATER_THAN"
	OpGreaterThanEqual Operator = "GREATER_THAN_EQUAL"
	OpLessThan         Operator = "LESS_THAN"
	OpLessThanEqual    Operator = "LESS_THAN_EQUAL"
	OpBetween          Operator = "BETWEEN"
	OpIn               Operator = "IN"
	OpCrossAbove       Operator = "CROSS_ABOVE"
	OpCrossBelow       Operator = "CROSS_BELOW"
)

var operators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpGreaterThan: true, OpGreaterThanEqual: true,
	OpLessThan: true, OpLessThanEqual: true,
	OpBetween: true, OpIn: true,
	OpCrossAbove: true, OpCrossBelow: true,
}

// Known reports whether op is part of the operator vocabulary.
func (op Operator) Known() bool { return operators[op] }

// ConditionNode is either a *LogicNode or a *LeafNode.
type ConditionNode interface {
	conditionNode()
}

// LogicNode joins children with AND or OR.
type LogicNode struct {
	Logic      Logic           `json:"logic"`
	Conditions []ConditionNode `json:"conditions"`
}

// LeafNode compares one factor with a threshold.
type LeafNode struct {
	FactorID    string    `json:"factor_id"`
	Operator    Operator  `json:"operator"`
	Threshold   Threshold `json:"value"`
	Description string    `json:"description,omitempty"`
}

func (*LogicNode) conditionNode() {}
func (*LeafNode) conditionNode()  {}

// UnmarshalJSON decodes children through ParseCondition.
func (n *LogicNode) UnmarshalJSON(b []byte) error {
	var raw struct {
		Logic      Logic             `json:"logic"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	n.Logic = Logic(strings.ToUpper(string(raw.Logic)))
	n.Conditions = make([]ConditionNode, 0, len(raw.Conditions))
	for i, c := range raw.Conditions {
		child, err := ParseCondition(c)
		if err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
		n.Conditions = append(n.Conditions, child)
	}
	return nil
}

// ParseCondition decodes a condition tree. Objects with a "logic" or "conditions" key are
// logic nodes; everything else is a leaf.
func ParseCondition(b []byte) (ConditionNode, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("condition must be an object: %w", err)
	}
	if probe == nil {
		return nil, fmt.Errorf("condition is null")
	}
	_, hasLogic := probe["logic"]
	_, hasChildren := probe["conditions"]
	if hasLogic || hasChildren {
		n := &LogicNode{}
		if err := json.Unmarshal(b, n); err != nil {
			return nil, err
		}
		return n, nil
	}
	leaf := &LeafNode{}
	if err := json.Unmarshal(b, leaf); err != nil {
		return nil, err
	}
	leaf.Operator = Operator(strings.ToUpper(string(leaf.Operator)))
	return leaf, nil
}

// Threshold is a scalar, a {min,max} range or a set, depending on the operator.
type Threshold struct {
	Scalar *float64
	Min    *float64
	Max    *float64
	Set    []float64
}

// ScalarThreshold builds a scalar threshold.
func ScalarThreshold(v float64) Threshold { return Threshold{Scalar: &v} }

// RangeThreshold builds an inclusive range threshold.
func RangeThreshold(min, max float64) Threshold { return Threshold{Min: &min, Max: &max} }

// SetThreshold builds a set threshold.
func SetThreshold(vs ...float64) Threshold { return Threshold{Set: append([]float64(nil), vs...)} }

// IsZero reports whether nothing was set.
func (t Threshold) IsZero() bool {
	return t.Scalar == nil && t.Min == nil && t.Max == nil && t.Set == nil
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	switch {
	case t.Set != nil:
		return json.Marshal(t.Set)
	case t.Min != nil || t.Max != nil:
		return json.Marshal(struct {
			Min *float64 `json:"min"`
			Max *float64 `json:"max"`
		}{t.Min, t.Max})
	case t.Scalar != nil:
		return json.Marshal(*t.Scalar)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts numbers, numeric strings, {min,max} objects and arrays.
func (t *Threshold) UnmarshalJSON(b []byte) error {
	*t = Threshold{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	switch s[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		t.Set = make([]float64, 0, len(items))
		for i, it := range items {
			f, err := jsonNumber(it)
			if err != nil {
				return fmt.Errorf("value[%d]: %w", i, err)
			}
			t.Set = append(t.Set, f)
		}
		return nil
	case '{':
		var r struct {
			Min json.RawMessage `json:"min"`
			Max json.RawMessage `json:"max"`
		}
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		if len(r.Min) > 0 && string(r.Min) != "null" {
			f, err := jsonNumber(r.Min)
			if err != nil {
				return fmt.Errorf("min: %w", err)
			}
			t.Min = &f
		}
		if len(r.Max) > 0 && string(r.Max) != "null" {
			f, err := jsonNumber(r.Max)
			if err != nil {
				return fmt.Errorf("max: %w", err)
			}
			t.Max = &f
		}
		return nil
	}
	f, err := jsonNumber(b)
	if err != nil {
		return err
	}
	t.Scalar = &f
	return nil
}

func jsonNumber(b []byte) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err2 := json.Unmarshal(b, &s); err2 != nil {
			return 0, fmt.Errorf("not a number: %s", string(b))
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", string(b))
	}
	return f, nil
}

func (t Threshold) String() string {
	b, _ := t.MarshalJSON()
	return string(b)
}

// StrategyStatus is the lifecycle state of a strategy.
type StrategyStatus string

const (
	StrategyActive   StrategyStatus = "ACTIVE"
	StrategyInactive StrategyStatus = "INACTIVE"
	StrategyDraft    StrategyStatus = "DRAFT"
)

// Signal types a strategy may emit.
const (
	SignalBuy   = "BUY"
	SignalSell  = "SELL"
	SignalHold  = "HOLD"
	SignalWatch = "WATCH"
)

// StrategyOutput configures what a matching strategy emits.
type StrategyOutput struct {
	SignalType string `json:"signal_type,omitempty" yaml:"signal_type"`
}

// Strategy is a user-authored rule set. The engine only reads it.
type Strategy struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Version           int            `json:"version"`
	Status            StrategyStatus `json:"status"`
	Conditions        ConditionNode  `json:"conditions"`
	ConfidenceFormula string         `json:"confidence_formula,omitempty"`
	Output            StrategyOutput `json:"output"`
}

func (s *Strategy) UnmarshalJSON(b []byte) error {
	type alias Strategy
	var raw struct {
		alias
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Strategy(raw.alias)
	s.Status = StrategyStatus(strings.ToUpper(string(s.Status)))
	s.Conditions = nil
	if len(raw.Conditions) > 0 && string(raw.Conditions) != "null" {
		node, err := ParseCondition(raw.Conditions)
		if err != nil {
			return fmt.Errorf("conditions: %w", err)
		}
		s.Conditions = node
	}
	return nil
}

// FactorSnapshot maps factor ids to numeric values for one entity at one instant.
type FactorSnapshot map[string]float64

// Clone returns an independent copy.
func (s FactorSnapshot) Clone() FactorSnapshot {
	out := make(FactorSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// MatchedCondition records how one leaf evaluated.
type MatchedCondition struct {
	FactorID    string    `json:"factor_id"`
	FactorValue *float64  `json:"factor_value"`
	Operator    Operator  `json:"operator"`
	Threshold   Threshold `json:"threshold"`
	Matched     bool      `json:"matched"`
	Description string    `json:"description,omitempty"`
}

// EvaluationResult is returned for every evaluation, matched or not.
type EvaluationResult struct {
	Matched           bool               `json:"matched"`
	MatchedConditions []MatchedCondition `json:"matched_conditions"`
}

// Signal is emitted when a strategy matches for an entity on a date.
type Signal struct {
	SignalID          string             `json:"signal_id"`
	ExecutionID       string             `json:"execution_id,omitempty"`
	StrategyID        string             `json:"strategy_id"`
	StrategyVersion   int                `json:"strategy_version"`
	StockID           string             `json:"stock_id"`
	TradeDate         string             `json:"trade_date"`
	SignalType        string             `json:"signal_type"`
	ConfidenceScore   float64            `json:"confidence_score"`
	MatchedConditions []MatchedCondition `json:"matched_conditions"`
	FactorValues      FactorSnapshot     `json:"factor_values"`
	CreatedAt         time.Time          `json:"created_at"`
}
