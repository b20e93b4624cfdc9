package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultJSONRoundTrip(t *testing.T) {
	score := 72.5
	r := NewResult("2330", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))
	r.Merge(CategoryMomentum, Values{"rsi_14": 28.4, "rsi_signal": "OVERSOLD"})
	r.Merge(CategoryTrend, Values{"ma_20": 601.0})
	r.Signals = []DetectedSignal{{Source: "volume_spike", Type: "VOLUME_SPIKE", Direction: DirectionBullish, Strength: 2.1, Date: "2024-05-06"}}
	r.Score = &score
	r.Grade = "B"
	r.Diagnostics.Warn("hurst", "insufficient data")

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &top))
	assert.Contains(t, top, "momentum")
	assert.Contains(t, top, "trend")
	assert.JSONEq(t, `"2024-05-06"`, string(top["calculation_date"]))

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, *r, back)
}

func TestResultJSON_EmptyDiagnosticsAreArrays(t *testing.T) {
	b, err := json.Marshal(NewResult("X", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"entity_id": "X",
		"calculation_date": "2024-01-02",
		"diagnostics": {"warnings": [], "errors": []}
	}`, string(b))
}

func TestResultJSON_RejectsUnknownCategory(t *testing.T) {
	var r Result
	err := json.Unmarshal([]byte(`{"entity_id":"X","astrology":{"x":1}}`), &r)
	assert.Error(t, err)
}

func TestResultValueLookup(t *testing.T) {
	r := NewResult("X", time.Time{})
	r.Merge(CategoryTrend, Values{"x": 1.0, "label": "UP"})
	r.Merge(CategorySignal, Values{"x": 2.0})

	f, ok := r.Float("x")
	require.True(t, ok)
	assert.Equal(t, 2.0, f)

	_, ok = r.Float("label")
	assert.False(t, ok)
	_, ok = r.Value("missing")
	assert.False(t, ok)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("p1")
	require.NoError(t, err)
	assert.Equal(t, P1, p)

	_, err = ParsePriority("P9")
	assert.Error(t, err)
}
