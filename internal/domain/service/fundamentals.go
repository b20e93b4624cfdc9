package service

import (
	"context"
	"time"

	"FactorLab/internal/domain/models"
)

// FundamentalsProvider supplies factors that are not derived from price series
// (valuation ratios, profitability) for snapshot assembly.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, entityID string, date time.Time) (models.FactorSnapshot, error)
}
