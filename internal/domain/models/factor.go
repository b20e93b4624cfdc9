package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FactorLab/pkg/util"
)

// Category groups calculators and names the per-category value map in a Result.
type Category string

const (
	CategoryTrend         Category = "TREND"
	CategoryMomentum      Category = "MOMENTUM"
	CategoryVolatility    Category = "VOLATILITY"
	CategoryStatistical   Category = "STATISTICAL"
	CategoryInstitutional Category = "INSTITUTIONAL"
	CategoryMargin        Category = "MARGIN"
	CategoryPattern       Category = "PATTERN"
	CategorySignal        Category = "SIGNAL"
)

// Categories lists every category in canonical execution order.
var Categories = []Category{
	CategoryTrend,
	CategoryMomentum,
	CategoryVolatility,
	CategoryStatistical,
	CategoryInstitutional,
	CategoryMargin,
	CategoryPattern,
	CategorySignal,
}

// Key is the JSON key of the category's value map.
func (c Category) Key() string { return strings.ToLower(string(c)) }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCategory accepts either the enum name or its lowercase key.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Priority is a calculator tier. Lower runs first and is cheaper to skip last.
type Priority int

const (
	P0 Priority = iota
	P1
	P2
)

func (p Priority) String() string { return fmt.Sprintf("P%d", int(p)) }

func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("priority: %w", err)
		}
		*p = Priority(n)
		return nil
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePriority parses "P0", "P1" or "P2".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P0":
		return P0, nil
	case "P1":
		return P1, nil
	case "P2":
		return P2, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// CalculatorMetadata describes a calculator. It is created once per calculator instance.
type CalculatorMetadata struct {
	Name            string             `json:"name"`
	Category        Category           `json:"category"`
	Label           string             `json:"label"`
	MinDataPoints   int                `json:"min_data_points"`
	DefaultParams   map[string]float64 `json:"default_params,omitempty"`
	Priority        Priority           `json:"priority"`
	RequiredColumns []string           `json:"required_columns,omitempty"`
}

// Level of a diagnostic entry.
type Level string

const (
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Diagnostic is one warning or error recorded during a computation pass.
type Diagnostic struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

// Diagnostics collects warnings and errors for one Result.
type Diagnostics struct {
	Warnings  []Diagnostic `json:"warnings"`
	Errors    []Diagnostic `json:"errors"`
	ElapsedMs int64        `json:"elapsed_ms,omitempty"`
}

func (d *Diagnostics) Warn(source, format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, Diagnostic{Source: source, Message: fmt.Sprintf(format, args...), Level: LevelWarning})
}

func (d *Diagnostics) Error(source, format string, args ...interface{}) {
	d.Errors = append(d.Errors, Diagnostic{Source: source, Message: fmt.Sprintf(format, args...), Level: LevelError})
}

func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Signal direction values used by detectors.
const (
	DirectionBullish = "BULLISH"
	DirectionBearish = "BEARISH"
	DirectionNeutral = "NEUTRAL"
)

// DetectedSignal is a structured event emitted by a pattern or signal detector.
type DetectedSignal struct {
	Source    string             `json:"source"`
	Type      string             `json:"type"`
	Direction string             `json:"direction"`
	Strength  float64            `json:"strength"`
	Date      string             `json:"date"`
	Message   string             `json:"message,omitempty"`
	Values    map[string]float64 `json:"values,omitempty"`
}

// Values is the named output of a single calculator. Values are float64 or string labels.
type Values map[string]interface{}

// Result is the categorized output of one engine pass over one entity.
type Result struct {
	EntityID        string
	CalculationDate time.Time
	Factors         map[Category]Values
	Signals         []DetectedSignal
	Score           *float64
	Grade           string
	Diagnostics     Diagnostics
}

// NewResult creates an empty Result.
func NewResult(entityID string, date time.Time) *Result {
	return &Result{
		EntityID:        entityID,
		CalculationDate: date,
		Factors:         make(map[Category]Values),
	}
}

// Merge folds values into the category map. Later keys overwrite earlier ones.
func (r *Result) Merge(c Category, v Values) {
	m, ok := r.Factors[c]
	if !ok {
		m = make(Values, len(v))
		r.Factors[c] = m
	}
	for k, val := range v {
		m[k] = val
	}
}

// Value looks a factor up across categories in canonical order; the last match wins.
func (r *Result) Value(name string) (interface{}, bool) {
	var (
		out   interface{}
		found bool
	)
	for _, c := range Categories {
		if v, ok := r.Factors[c][name]; ok {
			out, found = v, true
		}
	}
	return out, found
}

// Float returns a numeric factor.
func (r *Result) Float(name string) (float64, bool) {
	v, ok := r.Value(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

const (
	keyEntityID        = "entity_id"
	keyCalculationDate = "calculation_date"
	keySignals         = "signals"
	keyScore           = "score"
	keyGrade           = "grade"
	keyDiagnostics     = "diagnostics"
)

// MarshalJSON renders each category as a top level key next to the fixed fields.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Factors)+6)
	out[keyEntityID] = r.EntityID
	out[keyCalculationDate] = util.FormatDate(r.CalculationDate)
	for c, v := range r.Factors {
		if v == nil {
			v = Values{}
		}
		out[c.Key()] = v
	}
	if len(r.Signals) > 0 {
		out[keySignals] = r.Signals
	}
	if r.Score != nil {
		out[keyScore] = *r.Score
	}
	if r.Grade != "" {
		out[keyGrade] = r.Grade
	}
	diag := r.Diagnostics
	if diag.Warnings == nil {
		diag.Warnings = []Diagnostic{}
	}
	if diag.Errors == nil {
		diag.Errors = []Diagnostic{}
	}
	out[keyDiagnostics] = diag
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown keys are rejected.
func (r *Result) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	res := Result{Factors: make(map[Category]Values)}
	for k, v := range raw {
		switch k {
		case keyEntityID:
			if err := json.Unmarshal(v, &res.EntityID); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		case keyCalculationDate:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			if s != "" {
				t, ok := util.ParseDate(s)
				if !ok {
					return fmt.Errorf("%s: invalid date %q", k, s)
				}
				res.CalculationDate = t
			}
		case keySignals:
			if err := json.Unmarshal(v, &res.Signals); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		case keyScore:
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			res.Score = &f
		case keyGrade:
			if err := json.Unmarshal(v, &res.Grade); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		case keyDiagnostics:
			if err := json.Unmarshal(v, &res.Diagnostics); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			if len(res.Diagnostics.Warnings) == 0 {
				res.Diagnostics.Warnings = nil
			}
			if len(res.Diagnostics.Errors) == 0 {
				res.Diagnostics.Errors = nil
			}
		default:
			c, err := ParseCategory(k)
			if err != nil {
				return fmt.Errorf("result: %w", err)
			}
			vals := Values{}
			if err := json.Unmarshal(v, &vals); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			res.Factors[c] = vals
		}
	}
	*r = res
	return nil
}
