package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

func TestValidateStrategy(t *testing.T) {
	leaf := func(op models.Operator, th models.Threshold) *models.LeafNode {
		return &models.LeafNode{FactorID: "rsi_14", Operator: op, Threshold: th}
	}
	tests := []struct {
		name string
		st   *models.Strategy
		path string
	}{
		{"nil", nil, ""},
		{"missing id", &models.Strategy{Conditions: leaf(models.OpLessThan, models.ScalarThreshold(30))}, "id"},
		{"bad status", &models.Strategy{ID: "s", Status: "PAUSED", Conditions: leaf(models.OpLessThan, models.ScalarThreshold(30))}, "status"},
		{"no tree", &models.Strategy{ID: "s"}, "conditions"},
		{"reversed range", &models.Strategy{ID: "s", Conditions: leaf(models.OpBetween, models.RangeThreshold(5, 1))}, "conditions"},
		{"empty set", &models.Strategy{ID: "s", Conditions: leaf(models.OpIn, models.Threshold{})}, "conditions"},
		{"bad logic", &models.Strategy{ID: "s", Conditions: &models.LogicNode{Logic: "XOR"}}, "conditions"},
		{"nested", &models.Strategy{ID: "s", Conditions: &models.LogicNode{Logic: models.LogicOr, Conditions: []models.ConditionNode{
			leaf(models.OpGreaterThan, models.ScalarThreshold(1)),
			leaf("ABOVE", models.ScalarThreshold(1)),
		}}}, "conditions.conditions[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStrategy(tt.st)
			var cfg *StrategyConfigurationError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, tt.path, cfg.Path)
		})
	}

	ok := &models.Strategy{ID: "s", Status: models.StrategyActive, Conditions: &models.LogicNode{Logic: models.LogicAnd}}
	assert.NoError(t, ValidateStrategy(ok))
}

func TestFactorIDs(t *testing.T) {
	root := &models.LogicNode{Logic: models.LogicAnd, Conditions: []models.ConditionNode{
		&models.LeafNode{FactorID: "rsi_14"},
		&models.LogicNode{Logic: models.LogicOr, Conditions: []models.ConditionNode{
			&models.LeafNode{FactorID: "foreign_net_buy"},
			&models.LeafNode{FactorID: "rsi_14"},
		}},
	}}
	assert.Equal(t, []string{"foreign_net_buy", "rsi_14"}, FactorIDs(root))
	assert.Empty(t, FactorIDs(nil))
}
