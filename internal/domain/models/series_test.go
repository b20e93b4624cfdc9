package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time { return time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC) }

func TestSeriesValidate(t *testing.T) {
	s := NewSeries("2330")
	for i := 0; i < 3; i++ {
		s.Append(day(i), map[string]float64{ColClose: float64(100 + i), ColVolume: 1000})
	}
	require.NoError(t, s.Validate())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, day(2), s.LastDate())

	tail := s.Tail(2)
	assert.Equal(t, []float64{101, 102}, tail.Column(ColClose))
	assert.Same(t, s, s.Tail(10))

	s.Columns[ColOpen] = []float64{1}
	assert.ErrorContains(t, s.Validate(), `column "open"`)

	delete(s.Columns, ColOpen)
	s.Dates[2] = day(1)
	assert.ErrorContains(t, s.Validate(), "strictly increasing")
}

func TestSeriesMissingColumns(t *testing.T) {
	s := NewSeries("X")
	s.Append(day(0), map[string]float64{ColClose: 1})
	assert.True(t, s.Has(ColClose))
	assert.Equal(t, []string{ColHigh, ColLow}, s.Missing(ColHigh, ColClose, ColLow))

	var nilSeries *Series
	assert.Equal(t, 0, nilSeries.Len())
	assert.Error(t, nilSeries.Validate())
	assert.Equal(t, []string{ColClose}, nilSeries.Missing(ColClose))
}
