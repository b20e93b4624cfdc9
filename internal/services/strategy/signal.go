package strategy

import (
	"fmt"
	"sync/atomic"
	"time"

	"FactorLab/internal/domain/models"
	"FactorLab/pkg/util"
)

// MaxSignalSequence bounds the id counter so ids keep a fixed width.
const MaxSignalSequence = 999999

var signalTypes = map[string]bool{
	models.SignalBuy:   true,
	models.SignalSell:  true,
	models.SignalHold:  true,
	models.SignalWatch: true,
}

// SignalInput carries the per-entity context of a matched evaluation.
type SignalInput struct {
	ExecutionID string
	TradeDate   time.Time
	StockID     string
	Snapshot    models.FactorSnapshot
	Confidence  float64
}

// SignalGenerator turns matched evaluations into Signals. The sequence counter is shared by
// every goroutine using the generator.
type SignalGenerator struct {
	seq atomic.Int64
	now func() time.Time
}

func NewSignalGenerator() *SignalGenerator {
	return &SignalGenerator{now: time.Now}
}

// WithClock replaces the CreatedAt clock.
func (g *SignalGenerator) WithClock(now func() time.Time) *SignalGenerator {
	g.now = now
	return g
}

// Generate returns nil, false when eval did not match.
func (g *SignalGenerator) Generate(s *models.Strategy, eval models.EvaluationResult, in SignalInput) (*models.Signal, bool) {
	if s == nil || !eval.Matched {
		return nil, false
	}

	trail := make([]models.MatchedCondition, len(eval.MatchedConditions))
	for i, mc := range eval.MatchedConditions {
		if mc.FactorValue != nil {
			v := *mc.FactorValue
			mc.FactorValue = &v
		}
		mc.Threshold = cloneThreshold(mc.Threshold)
		trail[i] = mc
	}
	snap := in.Snapshot.Clone()

	return &models.Signal{
		SignalID:          g.NextID(in.TradeDate),
		ExecutionID:       in.ExecutionID,
		StrategyID:        s.ID,
		StrategyVersion:   s.Version,
		StockID:           in.StockID,
		TradeDate:         util.FormatDate(in.TradeDate),
		SignalType:        signalType(s.Output.SignalType),
		ConfidenceScore:   in.Confidence,
		MatchedConditions: trail,
		FactorValues:      snap,
		CreatedAt:         g.now().UTC(),
	}, true
}

// NextID allocates STG_SIG_<yyyymmdd>_<seq>.
func (g *SignalGenerator) NextID(date time.Time) string {
	return fmt.Sprintf("STG_SIG_%s_%06d", util.FormatCompactDate(date), g.next())
}

func (g *SignalGenerator) next() int64 {
	for {
		cur := g.seq.Load()
		n := cur + 1
		if n > MaxSignalSequence {
			n = 1
		}
		if g.seq.CompareAndSwap(cur, n) {
			return n
		}
	}
}

func signalType(t string) string {
	if signalTypes[t] {
		return t
	}
	return models.SignalBuy
}

func cloneThreshold(t models.Threshold) models.Threshold {
	out := models.Threshold{}
	if t.Scalar != nil {
		v := *t.Scalar
		out.Scalar = &v
	}
	if t.Min != nil {
		v := *t.Min
		out.Min = &v
	}
	if t.Max != nil {
		v := *t.Max
		out.Max = &v
	}
	if t.Set != nil {
		out.Set = append([]float64(nil), t.Set...)
	}
	return out
}
