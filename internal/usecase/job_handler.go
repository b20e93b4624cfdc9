package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FactorLab/pkg/kafka"
	"FactorLab/pkg/logger"
	"FactorLab/pkg/util"
)

// Job types accepted on the jobs topic.
const (
	JobCompute  = "compute"
	JobEvaluate = "evaluate"
)

// JobMessageType names jobs on the Redis queue.
const JobMessageType = "factor-job"

// Job is the payload of one message on the jobs topic.
//
//	{"type":"compute","entity_ids":["2330"],"as_of":"2024-03-01","plan":{"preset":"full"}}
//	{"type":"evaluate","strategy_id":"reversal","trade_date":"2024-03-01"}
//
// An evaluate job without strategy_id runs every ACTIVE strategy.
type Job struct {
	Type       string    `json:"type" validate:"required,oneof=compute evaluate"`
	EntityIDs  []string  `json:"entity_ids,omitempty" validate:"omitempty,max=500,dive,required"`
	AsOf       string    `json:"as_of,omitempty" validate:"omitempty,date"`
	TradeDate  string    `json:"trade_date,omitempty" validate:"omitempty,date"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Plan       *PlanSpec `json:"plan,omitempty"`
}

// JobHandler runs compute and evaluate jobs consumed from Kafka or the Redis queue.
// Returned errors make either transport retry and eventually park the message on its DLQ.
type JobHandler struct {
	topic    string
	compute  *ComputeFactorsUseCase
	evaluate *EvaluateStrategyUseCase
	log      *logger.Logger
}

var _ kafka.MessageHandler = (*JobHandler)(nil)

func NewJobHandler(topic string, compute *ComputeFactorsUseCase, evaluate *EvaluateStrategyUseCase, l *logger.Logger) *JobHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &JobHandler{topic: topic, compute: compute, evaluate: evaluate, log: l}
}

func (h *JobHandler) Topic() string { return h.topic }

func (h *JobHandler) Handle(ctx context.Context, b []byte) error {
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	start := time.Now()

	var err error
	switch job.Type {
	case JobCompute:
		err = h.runCompute(ctx, job)
	case JobEvaluate:
		err = h.runEvaluate(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		return fmt.Errorf("%s job: %w", job.Type, err)
	}
	h.log.Info("job done",
		logger.String("type", job.Type),
		logger.String("strategy", job.StrategyID),
		logger.Int("entities", len(job.EntityIDs)),
		logger.Duration("elapsed_ms", time.Since(start)),
	)
	return nil
}

func (h *JobHandler) runCompute(ctx context.Context, job Job) error {
	asOf, err := jobDate(job.AsOf)
	if err != nil {
		return err
	}
	plan, err := job.Plan.Build()
	if err != nil {
		return err
	}
	ids := job.EntityIDs
	if len(ids) == 0 {
		ids = h.evaluate.universe
	}
	_, err = h.compute.Compute(ctx, ComputeParams{EntityIDs: ids, AsOf: asOf, Plan: plan})
	return err
}

func (h *JobHandler) runEvaluate(ctx context.Context, job Job) error {
	date, err := jobDate(job.TradeDate)
	if err != nil {
		return err
	}
	if job.StrategyID == "" {
		_, err = h.evaluate.RunActiveStrategies(ctx, date)
		return err
	}
	_, err = h.evaluate.RunStrategy(ctx, job.StrategyID, job.EntityIDs, date)
	return err
}

// jobDate parses an optional YYYY-MM-DD date. Empty means today.
func jobDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
