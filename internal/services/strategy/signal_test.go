package strategy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLab/internal/domain/models"
)

var tradeDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func matchedEval() models.EvaluationResult {
	v := 25.5
	return models.EvaluationResult{
		Matched: true,
		MatchedConditions: []models.MatchedCondition{{
			FactorID:    "rsi_14",
			FactorValue: &v,
			Operator:    models.OpLessThan,
			Threshold:   models.ScalarThreshold(30),
			Matched:     true,
		}},
	}
}

func TestSignalGenerator_Generate(t *testing.T) {
	g := NewSignalGenerator().WithClock(func() time.Time { return tradeDate.Add(18 * time.Hour) })
	s := &models.Strategy{ID: "oversold", Version: 3, Output: models.StrategyOutput{SignalType: models.SignalWatch}}
	snap := models.FactorSnapshot{"rsi_14": 25.5}
	eval := matchedEval()

	sig, ok := g.Generate(s, eval, SignalInput{
		ExecutionID: "exec-1",
		TradeDate:   tradeDate,
		StockID:     "2330",
		Snapshot:    snap,
		Confidence:  74,
	})
	require.True(t, ok)
	assert.Equal(t, "STG_SIG_20240315_000001", sig.SignalID)
	assert.Equal(t, "oversold", sig.StrategyID)
	assert.Equal(t, 3, sig.StrategyVersion)
	assert.Equal(t, "2330", sig.StockID)
	assert.Equal(t, "2024-03-15", sig.TradeDate)
	assert.Equal(t, models.SignalWatch, sig.SignalType)
	assert.Equal(t, 74.0, sig.ConfidenceScore)
	assert.Equal(t, "exec-1", sig.ExecutionID)

	// the signal keeps its own copies
	snap["rsi_14"] = 99
	*eval.MatchedConditions[0].FactorValue = 99
	assert.Equal(t, 25.5, sig.FactorValues["rsi_14"])
	assert.Equal(t, 25.5, *sig.MatchedConditions[0].FactorValue)

	next, ok := g.Generate(s, eval, SignalInput{TradeDate: tradeDate})
	require.True(t, ok)
	assert.Equal(t, "STG_SIG_20240315_000002", next.SignalID)
}

func TestSignalGenerator_NotMatched(t *testing.T) {
	g := NewSignalGenerator()
	sig, ok := g.Generate(&models.Strategy{ID: "s"}, models.EvaluationResult{}, SignalInput{TradeDate: tradeDate})
	assert.False(t, ok)
	assert.Nil(t, sig)
	assert.Equal(t, "STG_SIG_20240315_000001", g.NextID(tradeDate))
}

func TestSignalGenerator_DefaultType(t *testing.T) {
	g := NewSignalGenerator()
	for _, typ := range []string{"", "STRONG_BUY", "buy"} {
		sig, ok := g.Generate(&models.Strategy{ID: "s", Output: models.StrategyOutput{SignalType: typ}}, matchedEval(), SignalInput{TradeDate: tradeDate})
		require.True(t, ok)
		assert.Equal(t, models.SignalBuy, sig.SignalType, typ)
	}
}

func TestSignalGenerator_SequenceWraps(t *testing.T) {
	g := NewSignalGenerator()
	g.seq.Store(MaxSignalSequence - 1)
	assert.Equal(t, "STG_SIG_20240315_999999", g.NextID(tradeDate))
	assert.Equal(t, "STG_SIG_20240315_000001", g.NextID(tradeDate))
}

func TestSignalGenerator_ConcurrentIDsUnique(t *testing.T) {
	g := NewSignalGenerator()
	const n = 500
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.NextID(tradeDate)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
