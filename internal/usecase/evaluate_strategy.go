package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	domservice "FactorLab/internal/domain/service"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/strategy"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/util"
)

// ErrStrategyInactive is returned when a non-ACTIVE strategy is evaluated without
// AllowInactive.
var ErrStrategyInactive = errors.New("strategy is not active")

// EvaluateStrategyUseCase computes factors for a universe, evaluates a strategy on every
// entity and emits signals for the matches.
type EvaluateStrategyUseCase struct {
	compute      *ComputeFactorsUseCase
	evaluator    *strategy.ConditionEvaluator
	confidence   *strategy.ConfidenceCalculator
	generator    *strategy.SignalGenerator
	strategies   domrepo.StrategyStore
	fundamentals domservice.FundamentalsProvider
	signals      domrepo.SignalStore
	publisher    domrepo.SignalPublisher
	universe     []string
	plan         factor.Plan
	metrics      domrepo.Metrics
	log          *logger.Logger
	newID        func() string
	now          func() time.Time
}

type EvaluateOption func(*EvaluateStrategyUseCase)

// WithFundamentals merges provider factors into every snapshot.
func WithFundamentals(p domservice.FundamentalsProvider) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.fundamentals = p }
}

// WithSignalSinks persists and publishes emitted signals. Either may be nil.
func WithSignalSinks(store domrepo.SignalStore, pub domrepo.SignalPublisher) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) {
		uc.signals = store
		uc.publisher = pub
	}
}

// WithStrategies sets the store RunActiveStrategies reads from.
func WithStrategies(s domrepo.StrategyStore) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.strategies = s }
}

// WithUniverse sets the entities used when a request names none.
func WithUniverse(ids []string) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.universe = append([]string(nil), ids...) }
}

// WithDefaultPlan sets the plan used by scheduled runs and requests without one.
func WithDefaultPlan(p factor.Plan) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.plan = p }
}

func WithEvaluateMetrics(m domrepo.Metrics) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.metrics = m }
}

func WithEvaluateLogger(l *logger.Logger) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// WithExecutionIDs replaces uuid generation.
func WithExecutionIDs(next func() string) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.newID = next }
}

func WithEvaluateClock(now func() time.Time) EvaluateOption {
	return func(uc *EvaluateStrategyUseCase) { uc.now = now }
}

func NewEvaluateStrategyUseCase(
	compute *ComputeFactorsUseCase,
	evaluator *strategy.ConditionEvaluator,
	confidence *strategy.ConfidenceCalculator,
	generator *strategy.SignalGenerator,
	opts ...EvaluateOption,
) *EvaluateStrategyUseCase {
	uc := &EvaluateStrategyUseCase{
		compute:    compute,
		evaluator:  evaluator,
		confidence: confidence,
		generator:  generator,
		plan:       factor.FullPlan(),
		log:        logger.Nop(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type EvaluateParams struct {
	Strategy  *models.Strategy
	EntityIDs []string
	TradeDate time.Time
	// Plan overrides the default plan when non-nil.
	Plan *factor.Plan
	// ExtraFactors are merged over computed factors per entity.
	ExtraFactors  map[string]models.FactorSnapshot
	AllowInactive bool
}

// EntityEvaluation is the outcome for one entity.
type EntityEvaluation struct {
	StockID           string                    `json:"stock_id"`
	Matched           bool                      `json:"matched"`
	MatchedConditions []models.MatchedCondition `json:"matched_conditions"`
	Confidence        *float64                  `json:"confidence_score,omitempty"`
	Signal            *models.Signal            `json:"signal,omitempty"`
	FactorValues      models.FactorSnapshot     `json:"factor_values"`
	Diagnostics       []models.Diagnostic       `json:"diagnostics,omitempty"`
}

// EvaluationReport summarises one strategy run.
type EvaluationReport struct {
	ExecutionID     string             `json:"execution_id"`
	StrategyID      string             `json:"strategy_id"`
	StrategyVersion int                `json:"strategy_version"`
	TradeDate       string             `json:"trade_date"`
	Evaluated       int                `json:"evaluated"`
	Matched         int                `json:"matched"`
	Entities        []EntityEvaluation `json:"entities"`
	Signals         []*models.Signal   `json:"signals"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// Evaluate runs the strategy over the requested entities, or the configured universe when
// none are named. Configuration problems are returned before any data is loaded.
func (uc *EvaluateStrategyUseCase) Evaluate(ctx context.Context, p EvaluateParams) (*EvaluationReport, error) {
	if err := strategy.ValidateStrategy(p.Strategy); err != nil {
		return nil, err
	}
	st := p.Strategy
	if st.Status != models.StrategyActive && !p.AllowInactive {
		return nil, fmt.Errorf("%s (%s): %w", st.ID, st.Status, ErrStrategyInactive)
	}
	ids := p.EntityIDs
	if len(ids) == 0 {
		ids = uc.universe
	}
	tradeDate := p.TradeDate
	if tradeDate.IsZero() {
		tradeDate = uc.now()
	}
	tradeDate = util.TruncateDay(tradeDate)
	plan := uc.plan
	if p.Plan != nil {
		plan = *p.Plan
	}

	results, err := uc.compute.Compute(ctx, ComputeParams{EntityIDs: ids, AsOf: tradeDate, Plan: plan})
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{
		ExecutionID:     uc.newID(),
		StrategyID:      st.ID,
		StrategyVersion: st.Version,
		TradeDate:       util.FormatDate(tradeDate),
		Entities:        make([]EntityEvaluation, 0, len(results)),
		Signals:         []*models.Signal{},
	}
	for _, id := range normalizeIDs(ids) {
		res := results[id]
		snap := strategy.SnapshotFromResults(res)
		if uc.fundamentals != nil {
			f, err := uc.fundamentals.Fundamentals(ctx, id, tradeDate)
			if err != nil {
				uc.recordError("fundamentals")
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: fundamentals unavailable: %v", id, err))
			} else {
				snap = strategy.Merge(snap, f)
			}
		}
		snap = strategy.Merge(snap, p.ExtraFactors[id])

		ev, err := uc.evaluateEntity(st, id, tradeDate, report.ExecutionID, snap)
		if err != nil {
			return nil, err
		}
		if res != nil {
			ev.Diagnostics = res.Diagnostics.Errors
		}
		report.Evaluated++
		if ev.Matched {
			report.Matched++
		}
		if ev.Signal != nil {
			report.Signals = append(report.Signals, ev.Signal)
		}
		report.Entities = append(report.Entities, *ev)
	}

	report.Warnings = append(report.Warnings, uc.deliver(ctx, report.Signals)...)
	uc.log.Info("strategy evaluated",
		logger.String("strategy", st.ID),
		logger.String("execution_id", report.ExecutionID),
		logger.String("trade_date", report.TradeDate),
		logger.Int("evaluated", report.Evaluated),
		logger.Int("matched", report.Matched),
	)
	return report, nil
}

// EvaluateSnapshot evaluates a strategy against caller supplied factor values. Nothing is
// loaded, persisted or published. A match still yields a signal preview.
func (uc *EvaluateStrategyUseCase) EvaluateSnapshot(st *models.Strategy, stockID string, tradeDate time.Time, snap models.FactorSnapshot) (*EntityEvaluation, error) {
	if err := strategy.ValidateStrategy(st); err != nil {
		return nil, err
	}
	if tradeDate.IsZero() {
		tradeDate = uc.now()
	}
	return uc.evaluateEntity(st, stockID, util.TruncateDay(tradeDate), "", snap)
}

func (uc *EvaluateStrategyUseCase) evaluateEntity(st *models.Strategy, stockID string, tradeDate time.Time, execID string, snap models.FactorSnapshot) (*EntityEvaluation, error) {
	if snap == nil {
		snap = models.FactorSnapshot{}
	}
	eval, err := uc.evaluator.Evaluate(st.Conditions, snap)
	if err != nil {
		return nil, err
	}
	ev := &EntityEvaluation{
		StockID:           stockID,
		Matched:           eval.Matched,
		MatchedConditions: eval.MatchedConditions,
		FactorValues:      snap,
	}
	if !eval.Matched {
		return ev, nil
	}

	conf, ferr := uc.confidence.Explain(st.ConfidenceFormula, snap)
	if ferr != nil && st.ConfidenceFormula != "" {
		uc.log.Debug("confidence formula fell back to default",
			logger.String("strategy", st.ID),
			logger.String("stock_id", stockID),
			logger.Error(ferr),
		)
	}
	ev.Confidence = &conf
	sig, ok := uc.generator.Generate(st, eval, strategy.SignalInput{
		ExecutionID: execID,
		TradeDate:   tradeDate,
		StockID:     stockID,
		Snapshot:    snap,
		Confidence:  conf,
	})
	if ok {
		ev.Signal = sig
		if uc.metrics != nil {
			uc.metrics.RecordSignal(st.ID, sig.SignalType)
		}
	}
	return ev, nil
}

// deliver persists then publishes signals. Failures are reported as warnings.
func (uc *EvaluateStrategyUseCase) deliver(ctx context.Context, signals []*models.Signal) []string {
	if len(signals) == 0 {
		return nil
	}
	var warnings []string
	if uc.signals != nil {
		if err := uc.signals.SaveSignals(ctx, signals); err != nil {
			uc.recordError("signal_store")
			uc.log.Error("save signals failed", logger.Int("signals", len(signals)), logger.Error(err))
			warnings = append(warnings, "signals not persisted: "+err.Error())
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishSignals(ctx, signals); err != nil {
			uc.recordError("signal_publish")
			uc.log.Error("publish signals failed", logger.Int("signals", len(signals)), logger.Error(err))
			warnings = append(warnings, "signals not published: "+err.Error())
		}
	}
	return warnings
}

// RunActiveStrategies evaluates every ACTIVE strategy over the configured universe. A
// failing strategy does not stop the others; their errors are joined.
func (uc *EvaluateStrategyUseCase) RunActiveStrategies(ctx context.Context, tradeDate time.Time) ([]*EvaluationReport, error) {
	if uc.strategies == nil {
		return nil, errors.New("no strategy store configured")
	}
	if len(uc.universe) == 0 {
		return nil, ErrNoEntities
	}
	active, err := uc.strategies.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}

	var (
		reports []*EvaluationReport
		errs    []error
	)
	for _, st := range active {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := uc.Evaluate(ctx, EvaluateParams{Strategy: st, TradeDate: tradeDate})
		if err != nil {
			uc.recordError("strategy_run")
			uc.log.Error("strategy run failed", logger.String("strategy", st.ID), logger.Error(err))
			errs = append(errs, fmt.Errorf("strategy %s: %w", st.ID, err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// RunStrategy evaluates one stored strategy by id.
func (uc *EvaluateStrategyUseCase) RunStrategy(ctx context.Context, id string, entityIDs []string, tradeDate time.Time) (*EvaluationReport, error) {
	if uc.strategies == nil {
		return nil, errors.New("no strategy store configured")
	}
	st, err := uc.strategies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.Evaluate(ctx, EvaluateParams{Strategy: st, EntityIDs: entityIDs, TradeDate: tradeDate})
}

func (uc *EvaluateStrategyUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
