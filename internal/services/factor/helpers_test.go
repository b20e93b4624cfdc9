package factor

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"FactorLab/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func closeSeries(id string, closes ...float64) *models.Series {
	s := models.NewSeries(id)
	for i, c := range closes {
		s.Append(day0.AddDate(0, 0, i), map[string]float64{models.ColClose: c})
	}
	return s
}

func rampSeries(id string, n int) *models.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closeSeries(id, closes...)
}

// stubCalc is a configurable calculator for engine tests.
type stubCalc struct {
	Base
	out    models.Values
	err    error
	panics bool
	calls  atomic.Int32
}

func newStub(name string, cat models.Category, minPoints int, prio models.Priority, out models.Values) *stubCalc {
	return &stubCalc{
		Base: NewBase(models.CalculatorMetadata{
			Name:            name,
			Category:        cat,
			Label:           name,
			MinDataPoints:   minPoints,
			Priority:        prio,
			RequiredColumns: []string{models.ColClose},
		}, nil),
		out: out,
	}
}

func (c *stubCalc) Calculate(s *models.Series, _ Params) (models.Values, error) {
	c.calls.Add(1)
	if c.panics {
		var m map[string]int
		m["boom"]++
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.out, nil
}

// explodingCalc fails only for one entity.
type explodingCalc struct {
	Base
	victim string
}

func (c *explodingCalc) Calculate(s *models.Series, _ Params) (models.Values, error) {
	if s.EntityID == c.victim {
		return nil, errors.New("division by zero in window")
	}
	return models.Values{"last_close": s.Column(models.ColClose)[s.Len()-1]}, nil
}

// paramEcho returns its effective params.
type paramEcho struct{ Base }

func (c paramEcho) Calculate(_ *models.Series, p Params) (models.Values, error) {
	out := models.Values{}
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

var nan = math.NaN()
