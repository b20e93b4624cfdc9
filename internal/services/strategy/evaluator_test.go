package strategy

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

func leaf(id string, op models.Operator, th models.Threshold) *models.LeafNode {
	return &models.LeafNode{FactorID: id, Operator: op, Threshold: th}
}

func and(children ...models.ConditionNode) *models.LogicNode {
	return &models.LogicNode{Logic: models.LogicAnd, Conditions: children}
}

func or(children ...models.ConditionNode) *models.LogicNode {
	return &models.LogicNode{Logic: models.LogicOr, Conditions: children}
}

func reversalTree() models.ConditionNode {
	return and(
		leaf("rsi_14", models.OpLessThan, models.ScalarThreshold(30)),
		leaf("kd_k", models.OpLessThan, models.ScalarThreshold(20)),
		or(
			leaf("foreign_net", models.OpGreaterThan, models.ScalarThreshold(0)),
			leaf("trust_net", models.OpGreaterThan, models.ScalarThreshold(0)),
		),
		leaf("volume_ratio", models.OpGreaterThan, models.ScalarThreshold(1.0)),
	)
}

func reversalSnapshot() models.FactorSnapshot {
	return models.FactorSnapshot{
		"rsi_14":       25.5,
		"kd_k":         18.2,
		"foreign_net":  5000000,
		"trust_net":    -100000,
		"volume_ratio": 1.35,
	}
}

func TestEvaluate_EndToEndReversal(t *testing.T) {
	ev := NewConditionEvaluator(nil)

	res, err := ev.Evaluate(reversalTree(), reversalSnapshot())
	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.Len(t, res.MatchedConditions, 5)
	assert.Equal(t, "foreign_net", res.MatchedConditions[2].FactorID)
	assert.True(t, res.MatchedConditions[2].Matched)
	assert.False(t, res.MatchedConditions[3].Matched)

	snap := reversalSnapshot()
	snap["rsi_14"] = 55
	res, err = ev.Evaluate(reversalTree(), snap)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	// no short circuit: every leaf is still reported
	assert.Len(t, res.MatchedConditions, 5)
}

func TestEvaluate_LogicSemantics(t *testing.T) {
	yes := leaf("x", models.OpGreaterThan, models.ScalarThreshold(0))
	no := leaf("x", models.OpLessThan, models.ScalarThreshold(0))
	snap := models.FactorSnapshot{"x": 1}

	tests := []struct {
		name string
		node models.ConditionNode
		want bool
	}{
		{"and all true", and(yes, yes), true},
		{"and one false", and(yes, no), false},
		{"or one true", or(no, yes), true},
		{"or all false", or(no, no), false},
		{"empty and", and(), true},
		{"empty or", or(), true},
		{"nested", or(and(yes, no), and(yes, yes)), true},
	}
	ev := NewConditionEvaluator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ev.Evaluate(tt.node, snap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Matched)
		})
	}
}

func TestEvaluate_MissingFactorIsNotMatched(t *testing.T) {
	ev := NewConditionEvaluator(nil)
	node := or(
		leaf("pe_ratio", models.OpLessThan, models.ScalarThreshold(15)),
		leaf("roe", models.OpNotEqual, models.ScalarThreshold(0)),
	)
	res, err := ev.Evaluate(node, models.FactorSnapshot{"roe": math.NaN()})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	for _, mc := range res.MatchedConditions {
		assert.False(t, mc.Matched)
		assert.Nil(t, mc.FactorValue)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		op   models.Operator
		v    float64
		th   models.Threshold
		want bool
	}{
		{"between low edge", models.OpBetween, 20, models.RangeThreshold(20, 80), true},
		{"between high edge", models.OpBetween, 80, models.RangeThreshold(20, 80), true},
		{"between outside", models.OpBetween, 80.0001, models.RangeThreshold(20, 80), false},
		{"equal after rounding", models.OpEqual, 0.1 + 0.2, models.ScalarThreshold(0.3), true},
		{"not equal", models.OpNotEqual, 1, models.ScalarThreshold(2), true},
		{"gte edge", models.OpGreaterThanEqual, 5, models.ScalarThreshold(5), true},
		{"lte edge", models.OpLessThanEqual, 5, models.ScalarThreshold(5), true},
		{"gt edge", models.OpGreaterThan, 5, models.ScalarThreshold(5), false},
		{"lt just inside", models.OpLessThan, 29.999999999, models.ScalarThreshold(30), true},
		{"lt just outside", models.OpLessThan, 30.000000001, models.ScalarThreshold(30), false},
		{"gt just inside", models.OpGreaterThan, 30.000000001, models.ScalarThreshold(30), true},
		{"gt tiny positive", models.OpGreaterThan, 1e-9, models.ScalarThreshold(0), true},
		{"lte just outside", models.OpLessThanEqual, 5.000000001, models.ScalarThreshold(5), false},
		{"between just below", models.OpBetween, 19.999999999, models.RangeThreshold(20, 80), false},
		{"between just inside", models.OpBetween, 79.999999999, models.RangeThreshold(20, 80), true},
		{"equal within places", models.OpEqual, 5.000000001, models.ScalarThreshold(5), true},
		{"in", models.OpIn, 2, models.SetThreshold(1, 2, 3), true},
		{"not in", models.OpIn, 4, models.SetThreshold(1, 2, 3), false},
		{"cross above", models.OpCrossAbove, 100, models.ScalarThreshold(0), false},
		{"cross below", models.OpCrossBelow, -100, models.ScalarThreshold(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.op, tt.v, tt.th))
		})
	}
}

func TestEvaluate_TinyValueAboveZero(t *testing.T) {
	ev := NewConditionEvaluator(nil)
	res, err := ev.Evaluate(
		and(leaf("foreign_net", models.OpGreaterThan, models.ScalarThreshold(0))),
		models.FactorSnapshot{"foreign_net": 4e-9},
	)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestEvaluate_RejectsMalformedTree(t *testing.T) {
	ev := NewConditionEvaluator(nil)
	tests := []struct {
		name string
		node models.ConditionNode
		path string
	}{
		{"nil root", nil, ""},
		{"missing factor id", and(leaf("", models.OpLessThan, models.ScalarThreshold(1))), "conditions[0]"},
		{"unknown operator", and(leaf("x", "ROUGHLY", models.ScalarThreshold(1))), "conditions[0]"},
		{"between inverted", leaf("x", models.OpBetween, models.RangeThreshold(5, 1)), ""},
		{"in empty", leaf("x", models.OpIn, models.Threshold{}), ""},
		{"scalar missing", leaf("x", models.OpGreaterThan, models.Threshold{}), ""},
		{"bad logic", &models.LogicNode{Logic: "XOR"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(tt.node, models.FactorSnapshot{"x": 1})
			var cfg *StrategyConfigurationError
			require.ErrorAs(t, err, &cfg)
			if tt.path != "" {
				assert.Contains(t, cfg.Path, tt.path)
			}
		})
	}
}

func TestEvaluate_ParsedTree(t *testing.T) {
	raw := `{
		"logic": "and",
		"conditions": [
			{"factor_id": "rsi_14", "operator": "between", "value": {"min": 20, "max": "30"}},
			{"factor_id": "ma_cross", "operator": "IN", "value": [1, 0]}
		]
	}`
	node, err := models.ParseCondition([]byte(raw))
	require.NoError(t, err)

	res, err := NewConditionEvaluator(nil).Evaluate(node, models.FactorSnapshot{"rsi_14": 30, "ma_cross": 1})
	require.NoError(t, err)
	assert.True(t, res.Matched)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"threshold":{"min":20,"max":30}`)
}
