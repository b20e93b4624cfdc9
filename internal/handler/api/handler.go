package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	"FactorLab/internal/services/factor"
	"FactorLab/internal/services/strategy"
	"FactorLab/internal/usecase"
	xhttp "FactorLab/pkg/http"
	xlogger "FactorLab/pkg/logger"
	"FactorLab/pkg/queue"
)

// Handler serves the factor and strategy API on Echo.
type Handler struct {
	logger   *xlogger.Logger
	compute  *usecase.ComputeFactorsUseCase
	evaluate *usecase.EvaluateStrategyUseCase
	results  domrepo.ResultStore
	signals  domrepo.SignalStore
	jobs     queue.Enqueuer
}

type Option func(*Handler)

// WithResultReader enables GET /api/factors/:entity_id.
func WithResultReader(s domrepo.ResultStore) Option {
	return func(h *Handler) { h.results = s }
}

// WithSignalReader enables GET /api/signals.
func WithSignalReader(s domrepo.SignalStore) Option {
	return func(h *Handler) { h.signals = s }
}

// WithJobQueue enables POST /api/jobs.
func WithJobQueue(q queue.Enqueuer) Option {
	return func(h *Handler) { h.jobs = q }
}

func NewHandler(logger *xlogger.Logger, compute *usecase.ComputeFactorsUseCase, evaluate *usecase.EvaluateStrategyUseCase, opts ...Option) *Handler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &Handler{logger: logger, compute: compute, evaluate: evaluate}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ xhttp.Handler = (*Handler)(nil)

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/calculators", h.Calculators)
	g.POST("/factors/compute", h.Compute)
	if h.results != nil {
		g.GET("/factors/:entity_id", h.Result)
	}
	g.POST("/strategies/validate", h.ValidateStrategy)
	g.POST("/strategies/evaluate", h.Evaluate)
	g.POST("/strategies/evaluate-snapshot", h.EvaluateSnapshot)
	g.POST("/strategies/:id/run", h.RunStrategy)
	if h.signals != nil {
		g.GET("/signals", h.Signals)
	}
	if h.jobs != nil {
		g.POST("/jobs", h.SubmitJob)
	}
}

func (h *Handler) Calculators(c echo.Context) error {
	req := &CalculatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var cat models.Category
	if req.Category != "" {
		parsed, err := models.ParseCategory(req.Category)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
		}
		cat = parsed
	}
	rows := make([]models.CalculatorMetadata, 0)
	for _, m := range h.compute.Engine().Registry().Metadata() {
		if cat != "" && m.Category != cat {
			continue
		}
		if req.Priority != "" && m.Priority.String() != req.Priority {
			continue
		}
		rows = append(rows, m)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *Handler) Compute(c echo.Context) error {
	req := &ComputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	plan, err := req.Plan.Build()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err).WithParam("field", "plan"))
	}

	res, err := h.compute.Compute(c.Request().Context(), usecase.ComputeParams{
		EntityIDs: req.EntityIDs,
		AsOf:      date(req.AsOf),
		Plan:      plan,
	})
	if err != nil {
		return h.fail(c, "compute", err)
	}
	rows := make([]*models.Result, 0, len(res))
	for _, r := range res {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EntityID < rows[j].EntityID })
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *Handler) Result(c echo.Context) error {
	req := &ResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.results.GetResult(c.Request().Context(), req.EntityID, date(req.Date))
	if err != nil {
		return h.fail(c, "get result", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) ValidateStrategy(c echo.Context) error {
	req := &ValidateStrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := strategy.ValidateStrategy(req.Strategy); err != nil {
		return h.fail(c, "validate strategy", err)
	}
	if f := req.Strategy.ConfidenceFormula; f != "" {
		if err := strategy.CheckFormula(f); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(xhttp.CodeInvalidConfig, "confidence_formula", err.Error(), http.StatusBadRequest))
		}
	}
	return xhttp.SuccessResponse(c, ValidateStrategyResponse{
		Valid:     true,
		FactorIDs: strategy.FactorIDs(req.Strategy.Conditions),
	})
}

func (h *Handler) Evaluate(c echo.Context) error {
	req := &EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var plan *factor.Plan
	if req.Plan != nil {
		p, err := req.Plan.Build()
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err).WithParam("field", "plan"))
		}
		plan = &p
	}

	report, err := h.evaluate.Evaluate(c.Request().Context(), usecase.EvaluateParams{
		Strategy:      req.Strategy,
		EntityIDs:     req.EntityIDs,
		TradeDate:     date(req.TradeDate),
		Plan:          plan,
		ExtraFactors:  extraSnapshots(req.ExtraFactors),
		AllowInactive: req.AllowInactive,
	})
	if err != nil {
		return h.fail(c, "evaluate strategy", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *Handler) EvaluateSnapshot(c echo.Context) error {
	req := &EvaluateSnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ev, err := h.evaluate.EvaluateSnapshot(req.Strategy, req.StockID, date(req.TradeDate), strategy.CoerceValues(req.FactorValues))
	if err != nil {
		return h.fail(c, "evaluate snapshot", err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *Handler) RunStrategy(c echo.Context) error {
	req := &RunStrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.evaluate.RunStrategy(c.Request().Context(), req.ID, req.EntityIDs, date(req.TradeDate))
	if err != nil {
		return h.fail(c, "run strategy", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *Handler) Signals(c echo.Context) error {
	req := &SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.signals.ListSignals(c.Request().Context(), req.StrategyID, date(req.TradeDate))
	if err != nil {
		return h.fail(c, "list signals", err)
	}
	if rows == nil {
		rows = []*models.Signal{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// SubmitJob queues a compute or evaluate job and answers 202 with its id.
func (h *Handler) SubmitJob(c echo.Context) error {
	req := &usecase.Job{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := req.Plan.Build(); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err).WithParam("field", "plan"))
	}
	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.JobMessageType, req)
	if err != nil {
		return h.fail(c, "enqueue job", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"job_id": id, "type": req.Type})
}

// fail maps domain errors onto API errors. Anything unrecognised is logged and answered
// with 500.
func (h *Handler) fail(c echo.Context, op string, err error) error {
	var cfg *strategy.StrategyConfigurationError
	switch {
	case errors.As(err, &cfg):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(xhttp.CodeInvalidConfig, cfg.Path, cfg.Msg, http.StatusBadRequest).WithError(err))
	case errors.Is(err, usecase.ErrNoEntities):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err).WithError(err))
	case errors.Is(err, usecase.ErrStrategyInactive):
		return xhttp.AppErrorResponse(c, xhttp.ConflictErrorf("%v", err).WithError(err))
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%v", err).WithError(err))
	}
	h.logger.Error(op+" failed",
		xlogger.String("path", c.Path()),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s failed", op).WithError(err))
}
