package factor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/util"
)

const engineSource = "engine"

// Engine runs plans against series. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	registry *Registry
	workers  int
	scorer   Scorer
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

// WithWorkers bounds BatchCompute concurrency.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithScorer(s Scorer) EngineOption {
	return func(e *Engine) { e.scorer = s }
}

func WithMetrics(m domrepo.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock sets the clock used to date results of empty series.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		workers:  runtime.NumCPU(),
		scorer:   CompositeScorer{},
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

// Compute runs the plan over one series. Calculator failures never abort the pass: they
// become diagnostics on the returned Result. An error is returned only when the series or
// plan cannot be run at all.
func (e *Engine) Compute(ctx context.Context, s *models.Series, plan Plan) (*models.Result, error) {
	start := time.Now()
	entityID := ""
	if s != nil {
		entityID = s.EntityID
	}
	if err := ctx.Err(); err != nil {
		return nil, &EntityComputationError{EntityID: entityID, Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &EntityComputationError{EntityID: entityID, Err: err}
	}
	if err := plan.Validate(); err != nil {
		return nil, &EntityComputationError{EntityID: entityID, Err: err}
	}

	date := s.LastDate()
	if date.IsZero() {
		date = util.TruncateDay(e.now())
	}
	res := models.NewResult(s.EntityID, date)

	calcs, unknown := plan.selection(e.registry)
	for _, name := range unknown {
		res.Diagnostics.Warn(name, "calculator %q is not registered", name)
		e.recordDiagnostic(name, models.LevelWarning)
	}

	for _, c := range calcs {
		e.runCalculator(c, s, plan.ParamsFor(c), res)
	}

	if plan.Score && e.scorer != nil {
		if score, grade, ok := e.scorer.Score(res); ok {
			res.Score = &score
			res.Grade = grade
		}
	}

	elapsed := time.Since(start)
	res.Diagnostics.ElapsedMs = elapsed.Milliseconds()
	if e.metrics != nil {
		e.metrics.RecordLatency("compute", elapsed.Seconds())
	}
	e.log.Debug("factors computed",
		logger.String("entity", s.EntityID),
		logger.Int("calculators", len(calcs)),
		logger.Int("warnings", len(res.Diagnostics.Warnings)),
		logger.Int("errors", len(res.Diagnostics.Errors)),
		logger.Duration("elapsed_ms", elapsed),
	)
	return res, nil
}

// runCalculator executes one calculator inside its own failure boundary.
func (e *Engine) runCalculator(c Calculator, s *models.Series, p Params, res *models.Result) {
	name := c.Name()
	start := time.Now()

	vals, sigs, short, err := e.invoke(c, s, p)
	if e.metrics != nil {
		e.metrics.RecordCalculation(name, time.Since(start).Seconds())
	}

	switch {
	case short != nil:
		res.Diagnostics.Warn(name, "%s", short.Error())
		e.recordDiagnostic(name, models.LevelWarning)
		return
	case err != nil:
		res.Diagnostics.Error(name, "%s", err.Error())
		e.recordDiagnostic(name, models.LevelError)
		e.log.Warn("calculator failed",
			logger.String("entity", s.EntityID),
			logger.String("calculator", name),
			logger.Error(err),
		)
		return
	}

	clean := make(models.Values, len(vals))
	for k, v := range vals {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			res.Diagnostics.Warn(name, "dropped non-finite value for %s", k)
			continue
		}
		clean[k] = v
	}
	if len(clean) > 0 {
		res.Merge(c.Category(), clean)
	}
	res.Signals = append(res.Signals, sigs...)
}

// invoke checks data sufficiency and calls the calculator, converting panics into errors.
func (e *Engine) invoke(c Calculator, s *models.Series, p Params) (vals models.Values, sigs []models.DetectedSignal, short *DataInsufficientError, err error) {
	defer func() {
		if r := recover(); r != nil {
			vals, sigs, short = nil, nil, nil
			err = &CalculatorExecutionError{Calculator: c.Name(), Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	if !c.HasEnoughData(s, p) {
		return nil, nil, insufficient(c, s, p), nil
	}

	vals, err = c.Calculate(s, p)
	if err != nil {
		return nil, nil, nil, &CalculatorExecutionError{Calculator: c.Name(), Err: err}
	}
	if d, ok := c.(Detector); ok {
		sigs, err = d.Detect(s, p)
		if err != nil {
			return nil, nil, nil, &CalculatorExecutionError{Calculator: c.Name(), Err: err}
		}
	}
	return vals, sigs, nil, nil
}

func insufficient(c Calculator, s *models.Series, p Params) *DataInsufficientError {
	if x, ok := c.(interface {
		Insufficient(*models.Series, Params) *DataInsufficientError
	}); ok {
		if d := x.Insufficient(s, p); d != nil {
			return d
		}
	}
	req := c.Metadata().MinDataPoints
	if r, ok := c.(Requirer); ok {
		req = r.Required(p)
	}
	return &DataInsufficientError{Calculator: c.Name(), Required: req, Actual: s.Len()}
}

func (e *Engine) recordDiagnostic(source string, level models.Level) {
	if e.metrics != nil {
		e.metrics.RecordDiagnostic(source, level)
	}
}

// BatchCompute runs the plan for every entity on a bounded pool. The returned map always
// holds exactly one Result per input entity; an entity that could not be computed gets an
// empty Result carrying a single ERROR diagnostic.
func (e *Engine) BatchCompute(ctx context.Context, seriesByEntity map[string]*models.Series, plan Plan) map[string]*models.Result {
	out := make(map[string]*models.Result, len(seriesByEntity))
	if len(seriesByEntity) == 0 {
		return out
	}

	ids := make([]string, 0, len(seriesByEntity))
	for id := range seriesByEntity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var mu sync.Mutex
	put := func(id string, r *models.Result) {
		mu.Lock()
		out[id] = r
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, id := range ids {
		id := id
		if err := ctx.Err(); err != nil {
			put(id, e.failed(id, &EntityComputationError{EntityID: id, Err: err}))
			continue
		}
		s := seriesByEntity[id]
		g.Go(func() error {
			put(id, e.computeEntity(ctx, id, s, plan))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) computeEntity(ctx context.Context, id string, s *models.Series, plan Plan) (res *models.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = e.failed(id, &EntityComputationError{EntityID: id, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if s != nil && s.EntityID == "" {
		named := *s
		named.EntityID = id
		s = &named
	}
	r, err := e.Compute(ctx, s, plan)
	if err != nil {
		return e.failed(id, err)
	}
	if e.metrics != nil {
		status := "ok"
		if r.Diagnostics.HasErrors() {
			status = "partial"
		}
		e.metrics.RecordEntity(status)
	}
	return r
}

// failed builds the placeholder Result for an entity that could not be computed.
func (e *Engine) failed(id string, err error) *models.Result {
	res := models.NewResult(id, util.TruncateDay(e.now()))
	var ece *EntityComputationError
	if errors.As(err, &ece) && ece.Err != nil {
		err = ece.Err
	}
	res.Diagnostics.Error(engineSource, "%s", err.Error())
	if e.metrics != nil {
		e.metrics.RecordEntity("failed")
		e.metrics.RecordDiagnostic(engineSource, models.LevelError)
	}
	e.log.Warn("entity computation failed", logger.String("entity", id), logger.Error(err))
	return res
}

// FailedResult exposes the placeholder for callers that fail before reaching the engine,
// such as a series load error.
func (e *Engine) FailedResult(id string, err error) *models.Result {
	return e.failed(id, err)
}
