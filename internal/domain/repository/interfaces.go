package repository

import (
	"context"
	"errors"
	"time"

	"FactorLab/internal/domain/models"
)

// ErrNotFound is returned by stores when a key has no record.
var ErrNotFound = errors.New("not found")

// SeriesProvider loads bounded daily series for the engine.
type SeriesProvider interface {
	// LoadSeries returns up to lookbackDays records ending at asOf (inclusive).
	LoadSeries(ctx context.Context, entityID string, asOf time.Time, lookbackDays int) (*models.Series, error)
}

// ResultStore persists computed results keyed by entity and calculation date.
type ResultStore interface {
	Init(ctx context.Context) error
	SaveResults(ctx context.Context, results []*models.Result) error
	GetResult(ctx context.Context, entityID string, date time.Time) (*models.Result, error)
}

// SignalStore persists emitted signals.
type SignalStore interface {
	Init(ctx context.Context) error
	SaveSignals(ctx context.Context, signals []*models.Signal) error
	ListSignals(ctx context.Context, strategyID string, tradeDate time.Time) ([]*models.Signal, error)
}

// SignalPublisher fans signals out to downstream consumers.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []*models.Signal) error
	Close() error
}

// StrategyStore is the read side of strategy authoring.
type StrategyStore interface {
	Get(ctx context.Context, id string) (*models.Strategy, error)
	ListActive(ctx context.Context) ([]*models.Strategy, error)
}

type Metrics interface {
	RecordCalculation(calculator string, seconds float64)
	RecordDiagnostic(source string, level models.Level)
	RecordEntity(status string)
	RecordSignal(strategyID, signalType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
