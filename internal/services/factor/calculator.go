package factor

import (
	"FactorLab/internal/domain/models"
)

// Calculator turns a series into named values. Calculate must be pure: no I/O and no
// shared mutable state. It may assume HasEnoughData returned true but must not panic if
// it did not; on an unmet internal precondition it returns an empty map and a nil error.
type Calculator interface {
	Name() string
	Category() models.Category
	Metadata() models.CalculatorMetadata
	HasEnoughData(s *models.Series, p Params) bool
	Calculate(s *models.Series, p Params) (models.Values, error)
}

// Detector is implemented by calculators that also emit structured signals.
type Detector interface {
	Detect(s *models.Series, p Params) ([]models.DetectedSignal, error)
}

// Requirer reports how many data points a calculator needs under the given params.
type Requirer interface {
	Required(p Params) int
}

// Base carries metadata and the default data check for concrete calculators.
type Base struct {
	meta models.CalculatorMetadata
	need func(p Params) int
}

// NewBase builds a Base. need may be nil, in which case MinDataPoints is used.
func NewBase(meta models.CalculatorMetadata, need func(p Params) int) Base {
	return Base{meta: meta, need: need}
}

func (b Base) Name() string { return b.meta.Name }

func (b Base) Category() models.Category { return b.meta.Category }

// Metadata returns a copy so callers cannot mutate the defaults.
func (b Base) Metadata() models.CalculatorMetadata {
	m := b.meta
	m.DefaultParams = Params(b.meta.DefaultParams).Clone()
	m.RequiredColumns = append([]string(nil), b.meta.RequiredColumns...)
	return m
}

// Defaults returns the default parameters.
func (b Base) Defaults() Params { return Params(b.meta.DefaultParams).Clone() }

// Required is the number of records needed under p.
func (b Base) Required(p Params) int {
	n := b.meta.MinDataPoints
	if b.need != nil {
		if m := b.need(p); m > n {
			n = m
		}
	}
	return n
}

// HasEnoughData checks length and required columns.
func (b Base) HasEnoughData(s *models.Series, p Params) bool {
	if s.Len() < b.Required(p) {
		return false
	}
	return s.Has(b.meta.RequiredColumns...)
}

// Insufficient describes why HasEnoughData failed, or nil.
func (b Base) Insufficient(s *models.Series, p Params) *DataInsufficientError {
	if missing := s.Missing(b.meta.RequiredColumns...); len(missing) > 0 {
		return &DataInsufficientError{Calculator: b.meta.Name, Required: b.Required(p), Actual: s.Len(), Missing: missing}
	}
	if req := b.Required(p); s.Len() < req {
		return &DataInsufficientError{Calculator: b.meta.Name, Required: req, Actual: s.Len()}
	}
	return nil
}
