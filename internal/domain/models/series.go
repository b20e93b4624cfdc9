package models

import (
	"fmt"
	"sort"
	"time"
)

// Standard column names carried by daily series.
const (
	ColOpen          = "open"
	ColHigh          = "high"
	ColLow           = "low"
	ColClose         = "close"
	ColVolume        = "volume"
	ColForeignNet    = "foreign_net"
	ColTrustNet      = "trust_net"
	ColDealerNet     = "dealer_net"
	ColMarginBalance = "margin_balance"
	ColShortBalance  = "short_balance"
)

// Series is an ordered run of dated records for one entity with parallel numeric columns.
// Index i of every column refers to Dates[i].
type Series struct {
	EntityID string               `json:"entity_id"`
	Dates    []time.Time          `json:"dates"`
	Columns  map[string][]float64 `json:"columns"`
}

// NewSeries creates an empty series for the entity.
func NewSeries(entityID string) *Series {
	return &Series{EntityID: entityID, Columns: make(map[string][]float64)}
}

// Len returns the number of records.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Dates)
}

// Column returns the named column or nil.
func (s *Series) Column(name string) []float64 {
	if s == nil || s.Columns == nil {
		return nil
	}
	return s.Columns[name]
}

// Has reports whether every named column is present.
func (s *Series) Has(names ...string) bool {
	return len(s.Missing(names...)) == 0
}

// Missing returns the named columns absent from the series.
func (s *Series) Missing(names ...string) []string {
	if s == nil {
		return names
	}
	var out []string
	for _, n := range names {
		if _, ok := s.Columns[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// LastDate returns the date of the final record, or the zero time for an empty series.
func (s *Series) LastDate() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Append adds one record. Columns absent from values are left untouched, so callers
// must append every column on every call to keep lengths aligned.
func (s *Series) Append(date time.Time, values map[string]float64) {
	s.Dates = append(s.Dates, date)
	for k, v := range values {
		s.Columns[k] = append(s.Columns[k], v)
	}
}

// Tail returns a view of the last n records. The returned series shares backing arrays.
func (s *Series) Tail(n int) *Series {
	if n >= s.Len() {
		return s
	}
	start := s.Len() - n
	out := &Series{
		EntityID: s.EntityID,
		Dates:    s.Dates[start:],
		Columns:  make(map[string][]float64, len(s.Columns)),
	}
	for k, col := range s.Columns {
		out.Columns[k] = col[start:]
	}
	return out
}

// Validate checks column alignment and date ordering.
func (s *Series) Validate() error {
	if s == nil {
		return fmt.Errorf("series is nil")
	}
	if s.EntityID == "" {
		return fmt.Errorf("series entity_id is empty")
	}
	n := len(s.Dates)
	names := make([]string, 0, len(s.Columns))
	for k := range s.Columns {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if len(s.Columns[k]) != n {
			return fmt.Errorf("column %q has %d values, want %d", k, len(s.Columns[k]), n)
		}
	}
	for i := 1; i < n; i++ {
		if !s.Dates[i].After(s.Dates[i-1]) {
			return fmt.Errorf("dates not strictly increasing at index %d (%s after %s)",
				i, s.Dates[i].Format("2006-01-02"), s.Dates[i-1].Format("2006-01-02"))
		}
	}
	return nil
}
