package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	"FactorLab/internal/services/factor"
	"FactorLab/pkg/cache"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/util"
)

// ErrNoEntities is returned when a request names no entity and no universe is configured.
var ErrNoEntities = errors.New("no entities to compute")

// ComputeFactorsUseCase loads series, runs the engine and persists the results.
type ComputeFactorsUseCase struct {
	engine       *factor.Engine
	series       domrepo.SeriesProvider
	results      domrepo.ResultStore
	cache        cache.Service
	cacheTTL     time.Duration
	minLookback  int
	loadTimeout  time.Duration
	loadParallel int
	metrics      domrepo.Metrics
	log          *logger.Logger
	now          func() time.Time
}

type ComputeOption func(*ComputeFactorsUseCase)

// WithResultStore persists every computed Result. Store failures are logged only.
func WithResultStore(s domrepo.ResultStore) ComputeOption {
	return func(uc *ComputeFactorsUseCase) { uc.results = s }
}

// WithResultCache serves repeated requests for the same entity, date and plan from c.
func WithResultCache(c cache.Service, ttl time.Duration) ComputeOption {
	return func(uc *ComputeFactorsUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// WithLoadLimits bounds series loading: at most parallel loads in flight, each cut off
// after timeout.
func WithLoadLimits(parallel int, timeout time.Duration) ComputeOption {
	return func(uc *ComputeFactorsUseCase) {
		if parallel > 0 {
			uc.loadParallel = parallel
		}
		uc.loadTimeout = timeout
	}
}

// WithMinLookback loads at least days bars even when the plan asks for fewer.
func WithMinLookback(days int) ComputeOption {
	return func(uc *ComputeFactorsUseCase) { uc.minLookback = days }
}

func WithComputeMetrics(m domrepo.Metrics) ComputeOption {
	return func(uc *ComputeFactorsUseCase) { uc.metrics = m }
}

func WithComputeLogger(l *logger.Logger) ComputeOption {
	return func(uc *ComputeFactorsUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// WithComputeClock sets the clock used when AsOf is zero.
func WithComputeClock(now func() time.Time) ComputeOption {
	return func(uc *ComputeFactorsUseCase) { uc.now = now }
}

func NewComputeFactorsUseCase(engine *factor.Engine, series domrepo.SeriesProvider, opts ...ComputeOption) *ComputeFactorsUseCase {
	uc := &ComputeFactorsUseCase{
		engine:       engine,
		series:       series,
		loadParallel: 8,
		loadTimeout:  5 * time.Second,
		log:          logger.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Engine exposes the underlying engine, for registry metadata.
func (uc *ComputeFactorsUseCase) Engine() *factor.Engine { return uc.engine }

type ComputeParams struct {
	EntityIDs []string
	AsOf      time.Time
	Plan      factor.Plan
}

// Compute returns one Result per distinct entity. Entities whose series cannot be loaded
// get a Result carrying a single ERROR diagnostic. The error return is reserved for
// requests that cannot run at all.
func (uc *ComputeFactorsUseCase) Compute(ctx context.Context, p ComputeParams) (map[string]*models.Result, error) {
	ids := normalizeIDs(p.EntityIDs)
	if len(ids) == 0 {
		return nil, ErrNoEntities
	}
	if err := p.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	asOf := p.AsOf
	if asOf.IsZero() {
		asOf = uc.now()
	}
	asOf = util.TruncateDay(asOf)
	start := time.Now()

	out := make(map[string]*models.Result, len(ids))
	keys := uc.cacheKeys(ids, asOf, p.Plan)
	misses := uc.fromCache(ctx, ids, keys, out)

	if len(misses) > 0 {
		loaded, failed := uc.load(ctx, misses, asOf, p.Plan)
		computed := uc.engine.BatchCompute(ctx, loaded, p.Plan)
		for id, err := range failed {
			computed[id] = uc.engine.FailedResult(id, err)
		}
		fresh := make(map[string]*models.Result, len(misses))
		for _, id := range misses {
			if r := computed[id]; r != nil {
				out[id] = r
				fresh[id] = r
			}
		}
		uc.persist(ctx, fresh, keys)
	}

	if uc.metrics != nil {
		uc.metrics.RecordLatency("compute_request", time.Since(start).Seconds())
	}
	uc.log.Info("factor computation finished",
		logger.Int("entities", len(ids)),
		logger.Int("computed", len(misses)),
		logger.Int("cached", len(ids)-len(misses)),
		logger.String("as_of", util.FormatDate(asOf)),
		logger.Duration("elapsed_ms", time.Since(start)),
	)
	return out, nil
}

func normalizeIDs(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// planFingerprint is stable for equal plans: encoding/json sorts map keys.
func planFingerprint(p factor.Plan) string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return cache.HashKey(string(b))
}

func (uc *ComputeFactorsUseCase) cacheKeys(ids []string, asOf time.Time, plan factor.Plan) map[string]string {
	if uc.cache == nil {
		return nil
	}
	fp := planFingerprint(plan)
	if fp == "" {
		return nil
	}
	keys := make(map[string]string, len(ids))
	for _, id := range ids {
		keys[id] = cache.Key("results", util.FormatCompactDate(asOf), fp, id)
	}
	return keys
}

// fromCache fills out with cached results and returns the ids still to compute.
func (uc *ComputeFactorsUseCase) fromCache(ctx context.Context, ids []string, keys map[string]string, out map[string]*models.Result) []string {
	if len(keys) == 0 {
		return ids
	}
	list := make([]string, 0, len(keys))
	for _, id := range ids {
		list = append(list, keys[id])
	}
	hits, err := cache.MGetTyped[*models.Result](ctx, uc.cache, list...)
	if err != nil {
		uc.log.Warn("result cache read failed", logger.Error(err))
		uc.recordError("result_cache")
		return ids
	}
	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, ok := hits[keys[id]]; ok && r != nil {
			out[id] = r
			continue
		}
		misses = append(misses, id)
	}
	return misses
}

// load fetches series on a bounded pool. Each load gets its own timeout.
func (uc *ComputeFactorsUseCase) load(ctx context.Context, ids []string, asOf time.Time, plan factor.Plan) (map[string]*models.Series, map[string]error) {
	days := plan.LookbackDays
	if uc.minLookback > days {
		days = uc.minLookback
	}

	var (
		mu     sync.Mutex
		loaded = make(map[string]*models.Series, len(ids))
		failed = make(map[string]error)
	)
	var g errgroup.Group
	g.SetLimit(uc.loadParallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			lctx, cancel := ctx, context.CancelFunc(func() {})
			if uc.loadTimeout > 0 {
				lctx, cancel = context.WithTimeout(ctx, uc.loadTimeout)
			}
			s, err := uc.series.LoadSeries(lctx, id, asOf, days)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = fmt.Errorf("load series: %w", err)
				uc.recordError("series_load")
				uc.log.Warn("series load failed", logger.String("entity", id), logger.Error(err))
				return nil
			}
			loaded[id] = s
			return nil
		})
	}
	_ = g.Wait()
	return loaded, failed
}

// persist saves results and caches the error-free ones. Failures here never change what
// the caller receives.
func (uc *ComputeFactorsUseCase) persist(ctx context.Context, fresh map[string]*models.Result, keys map[string]string) {
	if len(fresh) == 0 {
		return
	}
	if uc.results != nil {
		results := make([]*models.Result, 0, len(fresh))
		for _, r := range fresh {
			results = append(results, r)
		}
		if err := uc.results.SaveResults(ctx, results); err != nil {
			uc.recordError("result_store")
			uc.log.Error("save results failed", logger.Int("results", len(results)), logger.Error(err))
		}
	}
	if len(keys) == 0 {
		return
	}
	values := make(map[string]interface{}, len(fresh))
	for id, r := range fresh {
		if r.Diagnostics.HasErrors() {
			continue
		}
		if k, ok := keys[id]; ok {
			values[k] = r
		}
	}
	if len(values) == 0 {
		return
	}
	if err := uc.cache.MSet(ctx, values, uc.cacheTTL); err != nil {
		uc.recordError("result_cache")
		uc.log.Warn("result cache write failed", logger.Error(err))
	}
}

func (uc *ComputeFactorsUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
