package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"FactorLab/internal/domain/models"
	"FactorLab/internal/repository"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/strategy"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// lastBar exposes the latest close and its one-day change.
type lastBar struct{ factor.Base }

func newLastBar() lastBar {
	return lastBar{factor.NewBase(models.CalculatorMetadata{
		Name:            "last_bar",
		Category:        models.CategoryMomentum,
		MinDataPoints:   2,
		Priority:        models.P0,
		RequiredColumns: []string{models.ColClose},
	}, nil)}
}

func (lastBar) Calculate(s *models.Series, _ factor.Params) (models.Values, error) {
	c := s.Column(models.ColClose)
	n := len(c)
	return models.Values{"last_close": c[n-1], "pct_change": (c[n-1]/c[n-2] - 1) * 100}, nil
}

// closes builds a daily series starting at day0.
func closes(id string, vals ...float64) *models.Series {
	s := models.NewSeries(id)
	for i, v := range vals {
		s.Append(day0.AddDate(0, 0, i), map[string]float64{models.ColClose: v, models.ColVolume: 1000})
	}
	return s
}

func ramp(from float64, n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

// countingSeries counts loads per entity.
type countingSeries struct {
	*repository.MemorySeriesProvider
	mu    sync.Mutex
	loads map[string]int
}

func (c *countingSeries) LoadSeries(ctx context.Context, id string, asOf time.Time, days int) (*models.Series, error) {
	c.mu.Lock()
	c.loads[id]++
	c.mu.Unlock()
	return c.MemorySeriesProvider.LoadSeries(ctx, id, asOf, days)
}

func (c *countingSeries) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[id]
}

// fixture wires both use cases against in-memory stores. 2330 rises to 109, 2317 falls
// to 91 over ten sessions ending 2024-03-10.
type fixture struct {
	series    *countingSeries
	results   *repository.MemoryResultStore
	signals   *repository.MemorySignalStore
	publisher *repository.MemorySignalPublisher
	compute   *ComputeFactorsUseCase
	evaluate  *EvaluateStrategyUseCase
	execSeq   atomic.Int32
}

var lastDay = day0.AddDate(0, 0, 9)

func newFixture(extra ...EvaluateOption) *fixture {
	mem := repository.NewMemorySeriesProvider()
	mem.Put(closes("2330", ramp(100, 10, 1)...))
	mem.Put(closes("2317", ramp(100, 10, -1)...))

	f := &fixture{
		series:    &countingSeries{MemorySeriesProvider: mem, loads: map[string]int{}},
		results:   repository.NewMemoryResultStore(),
		signals:   repository.NewMemorySignalStore(),
		publisher: repository.NewMemorySignalPublisher(),
	}
	eng := factor.NewEngine(factor.NewRegistry(newLastBar()), factor.WithWorkers(2))
	f.compute = NewComputeFactorsUseCase(eng, f.series,
		WithResultStore(f.results),
		WithLoadLimits(2, time.Second),
		WithComputeClock(func() time.Time { return lastDay.Add(20 * time.Hour) }),
	)
	opts := []EvaluateOption{
		WithSignalSinks(f.signals, f.publisher),
		WithUniverse([]string{"2330", "2317"}),
		WithDefaultPlan(factor.PlanOf("last_bar")),
		WithExecutionIDs(func() string { return fmt.Sprintf("exec-%d", f.execSeq.Add(1)) }),
		WithEvaluateClock(func() time.Time { return lastDay.Add(20 * time.Hour) }),
	}
	f.evaluate = NewEvaluateStrategyUseCase(f.compute,
		strategy.NewConditionEvaluator(nil),
		strategy.NewConfidenceCalculator(),
		strategy.NewSignalGenerator().WithClock(func() time.Time { return lastDay.Add(21 * time.Hour) }),
		append(opts, extra...)...,
	)
	return f
}

func breakout(id string, status models.StrategyStatus) *models.Strategy {
	return &models.Strategy{
		ID:      id,
		Name:    "breakout",
		Version: 3,
		Status:  status,
		Conditions: &models.LogicNode{Logic: models.LogicAnd, Conditions: []models.ConditionNode{
			&models.LeafNode{FactorID: "last_close", Operator: models.OpGreaterThan, Threshold: models.ScalarThreshold(105)},
			&models.LeafNode{FactorID: "pct_change", Operator: models.OpGreaterThan, Threshold: models.ScalarThreshold(0)},
		}},
		ConfidenceFormula: "last_close / 200",
		Output:            models.StrategyOutput{SignalType: models.SignalBuy},
	}
}

type fakeFundamentals struct {
	snaps map[string]models.FactorSnapshot
	err   error
}

func (f fakeFundamentals) Fundamentals(_ context.Context, id string, _ time.Time) (models.FactorSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps[id], nil
}
