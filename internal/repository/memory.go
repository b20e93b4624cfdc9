package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	"FactorLab/pkg/util"
)

// MemorySeriesProvider serves series held in memory. Used by tests and the demo config.
type MemorySeriesProvider struct {
	mu     sync.RWMutex
	series map[string]*models.Series
}

var _ domrepo.SeriesProvider = (*MemorySeriesProvider)(nil)

func NewMemorySeriesProvider() *MemorySeriesProvider {
	return &MemorySeriesProvider{series: make(map[string]*models.Series)}
}

// Put stores s under its entity id.
func (p *MemorySeriesProvider) Put(s *models.Series) {
	p.mu.Lock()
	p.series[s.EntityID] = s
	p.mu.Unlock()
}

// LoadSeries returns a copy of the stored bars dated on or before asOf, limited to the
// last lookbackDays.
func (p *MemorySeriesProvider) LoadSeries(ctx context.Context, entityID string, asOf time.Time, lookbackDays int) (*models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	s, ok := p.series[entityID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("series %s: %w", entityID, domrepo.ErrNotFound)
	}

	cutoff := util.TruncateDay(asOf)
	end := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(cutoff) })
	start := 0
	if lookbackDays > 0 && end > lookbackDays {
		start = end - lookbackDays
	}

	out := models.NewSeries(entityID)
	out.Dates = append([]time.Time(nil), s.Dates[start:end]...)
	for name, col := range s.Columns {
		out.Columns[name] = append([]float64(nil), col[start:end]...)
	}
	return out, nil
}

// MemoryResultStore keeps results keyed by entity and date.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*models.Result
}

var _ domrepo.ResultStore = (*MemoryResultStore)(nil)

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]*models.Result)}
}

func resultKey(entityID string, date time.Time) string {
	return entityID + "|" + util.FormatDate(date)
}

func (s *MemoryResultStore) Init(context.Context) error { return nil }

func (s *MemoryResultStore) SaveResults(_ context.Context, results []*models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if r != nil {
			s.results[resultKey(r.EntityID, r.CalculationDate)] = r
		}
	}
	return nil
}

func (s *MemoryResultStore) GetResult(_ context.Context, entityID string, date time.Time) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultKey(entityID, date)]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return r, nil
}

// Len returns the number of stored results.
func (s *MemoryResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// MemorySignalStore appends signals in arrival order.
type MemorySignalStore struct {
	mu      sync.RWMutex
	signals []*models.Signal
}

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)

func NewMemorySignalStore() *MemorySignalStore { return &MemorySignalStore{} }

func (s *MemorySignalStore) Init(context.Context) error { return nil }

func (s *MemorySignalStore) SaveSignals(_ context.Context, signals []*models.Signal) error {
	s.mu.Lock()
	s.signals = append(s.signals, signals...)
	s.mu.Unlock()
	return nil
}

func (s *MemorySignalStore) ListSignals(_ context.Context, strategyID string, tradeDate time.Time) ([]*models.Signal, error) {
	day := util.FormatDate(tradeDate)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Signal
	for _, sig := range s.signals {
		if sig.StrategyID == strategyID && sig.TradeDate == day {
			out = append(out, sig)
		}
	}
	return out, nil
}

// MemorySignalPublisher records published signals. Set Err to simulate a broker failure.
type MemorySignalPublisher struct {
	mu        sync.Mutex
	published []*models.Signal
	Err       error
}

var _ domrepo.SignalPublisher = (*MemorySignalPublisher)(nil)

func NewMemorySignalPublisher() *MemorySignalPublisher { return &MemorySignalPublisher{} }

func (p *MemorySignalPublisher) PublishSignals(_ context.Context, signals []*models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.published = append(p.published, signals...)
	return nil
}

// Published returns a snapshot of everything published so far.
func (p *MemorySignalPublisher) Published() []*models.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Signal(nil), p.published...)
}

func (p *MemorySignalPublisher) Close() error { return nil }
