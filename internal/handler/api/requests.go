package api

import (
	"time"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/services/strategy"
	"FactorLab/internal/usecase"
	"FactorLab/pkg/util"
)

type CalculatorsRequest struct {
	Category string `query:"category" json:"category"`
	Priority string `query:"priority" json:"priority" validate:"omitempty,oneof=P0 P1 P2"`
}

type ComputeRequest struct {
	EntityIDs []string          `json:"entity_ids" validate:"required,min=1,max=500,dive,required"`
	AsOf      string            `json:"as_of" validate:"omitempty,date"`
	Plan      *usecase.PlanSpec `json:"plan"`
}

type ResultRequest struct {
	EntityID string `param:"entity_id" validate:"required"`
	Date     string `query:"date" validate:"required,date"`
}

type ValidateStrategyRequest struct {
	Strategy *models.Strategy `json:"strategy" validate:"required"`
}

type EvaluateRequest struct {
	Strategy     *models.Strategy                 `json:"strategy" validate:"required"`
	EntityIDs    []string                         `json:"entity_ids" validate:"omitempty,max=500,dive,required"`
	TradeDate    string                           `json:"trade_date" validate:"omitempty,date"`
	Plan         *usecase.PlanSpec                `json:"plan"`
	ExtraFactors map[string]map[string]interface{} `json:"extra_factors"`
	// AllowInactive lets authors dry-run DRAFT and INACTIVE strategies.
	AllowInactive bool `json:"allow_inactive"`
}

type EvaluateSnapshotRequest struct {
	Strategy     *models.Strategy       `json:"strategy" validate:"required"`
	StockID      string                 `json:"stock_id" default:"SNAPSHOT"`
	TradeDate    string                 `json:"trade_date" validate:"omitempty,date"`
	FactorValues map[string]interface{} `json:"factor_values"`
}

type RunStrategyRequest struct {
	ID        string   `param:"id" validate:"required"`
	EntityIDs []string `json:"entity_ids" validate:"omitempty,max=500,dive,required"`
	TradeDate string   `json:"trade_date" validate:"omitempty,date"`
}

type SignalsRequest struct {
	StrategyID string `query:"strategy_id" validate:"required"`
	TradeDate  string `query:"trade_date" validate:"required,date"`
}

// ValidateStrategyResponse lists the factors a valid strategy reads.
type ValidateStrategyResponse struct {
	Valid     bool     `json:"valid"`
	FactorIDs []string `json:"factor_ids"`
}

// date parses an already validated date field; empty means zero.
func date(s string) time.Time {
	t, _ := util.ParseDate(s)
	return t
}

func extraSnapshots(in map[string]map[string]interface{}) map[string]models.FactorSnapshot {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]models.FactorSnapshot, len(in))
	for id, vals := range in {
		out[id] = strategy.CoerceValues(vals)
	}
	return out
}
