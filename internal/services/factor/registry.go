package factor

import (
	"sort"
	"sync"

	"FactorLab/internal/domain/models"
)

// Registry indexes calculators by name, category and priority. It is populated once at
// startup and only read afterwards.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Calculator
}

// NewRegistry registers every calculator in order.
func NewRegistry(calcs ...Calculator) *Registry {
	r := &Registry{byName: make(map[string]Calculator, len(calcs))}
	for _, c := range calcs {
		r.Register(c)
	}
	return r
}

// Register adds c. A later registration under the same name replaces the earlier one.
func (r *Registry) Register(c Calculator) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.byName[c.Name()] = c
	r.mu.Unlock()
}

// Get returns the calculator registered under name.
func (r *Registry) Get(name string) (Calculator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Len is the number of registered calculators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// ByCategory returns the category's calculators ordered by priority then name.
func (r *Registry) ByCategory(c models.Category) []Calculator {
	var out []Calculator
	for _, calc := range r.All() {
		if calc.Category() == c {
			out = append(out, calc)
		}
	}
	return out
}

// ByPriority returns the names of calculators in the given tier, sorted.
func (r *Registry) ByPriority(p models.Priority) []string {
	var out []string
	for _, calc := range r.All() {
		if calc.Metadata().Priority == p {
			out = append(out, calc.Name())
		}
	}
	sort.Strings(out)
	return out
}

// All returns every calculator in canonical category order, then priority, then name.
func (r *Registry) All() []Calculator {
	r.mu.RLock()
	out := make([]Calculator, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, c)
	}
	r.mu.RUnlock()

	rank := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		rank[c] = i
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := rank[out[i].Category()], rank[out[j].Category()]
		if ci != cj {
			return ci < cj
		}
		pi, pj := out[i].Metadata().Priority, out[j].Metadata().Priority
		if pi != pj {
			return pi < pj
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Names returns all registered names in canonical order.
func (r *Registry) Names() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.Name()
	}
	return out
}

// Metadata lists metadata for every calculator in canonical order.
func (r *Registry) Metadata() []models.CalculatorMetadata {
	all := r.All()
	out := make([]models.CalculatorMetadata, len(all))
	for i, c := range all {
		out[i] = c.Metadata()
	}
	return out
}
