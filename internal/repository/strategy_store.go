package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
)

// StrategyStore holds strategies in memory, optionally loaded from a YAML file.
type StrategyStore struct {
	mu         sync.RWMutex
	strategies map[string]*models.Strategy
	path       string
}

var _ domrepo.StrategyStore = (*StrategyStore)(nil)

// NewStrategyStore builds a store holding the given strategies.
func NewStrategyStore(strategies ...*models.Strategy) *StrategyStore {
	s := &StrategyStore{strategies: make(map[string]*models.Strategy, len(strategies))}
	for _, st := range strategies {
		s.Put(st)
	}
	return s
}

// LoadStrategyFile reads a YAML document of the form {strategies: [...]}. Each entry uses
// the same field names as the JSON API.
func LoadStrategyFile(path string) (*StrategyStore, error) {
	s := NewStrategyStore()
	s.path = path
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file and replaces the current set atomically.
func (s *StrategyStore) Reload() error {
	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read strategies: %w", err)
	}
	list, err := ParseStrategies(b)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	next := make(map[string]*models.Strategy, len(list))
	for _, st := range list {
		next[st.ID] = st
	}
	s.mu.Lock()
	s.strategies = next
	s.mu.Unlock()
	return nil
}

// ParseStrategies decodes YAML strategies. The document goes through JSON so condition
// trees and thresholds are decoded by the same code the API uses.
func ParseStrategies(b []byte) ([]*models.Strategy, error) {
	var doc struct {
		Strategies []interface{} `yaml:"strategies"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out := make([]*models.Strategy, 0, len(doc.Strategies))
	seen := make(map[string]bool, len(doc.Strategies))
	for i, raw := range doc.Strategies {
		js, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
		var st models.Strategy
		if err := json.Unmarshal(js, &st); err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if st.ID == "" {
			return nil, fmt.Errorf("strategies[%d]: missing id", i)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("strategies[%d]: duplicate id %q", i, st.ID)
		}
		seen[st.ID] = true
		out = append(out, &st)
	}
	return out, nil
}

// Put adds or replaces a strategy.
func (s *StrategyStore) Put(st *models.Strategy) {
	if st == nil {
		return
	}
	s.mu.Lock()
	s.strategies[st.ID] = st
	s.mu.Unlock()
}

func (s *StrategyStore) Get(_ context.Context, id string) (*models.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy %s: %w", id, domrepo.ErrNotFound)
	}
	return st, nil
}

// ListActive returns ACTIVE strategies sorted by id.
func (s *StrategyStore) ListActive(context.Context) ([]*models.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if st.Status == models.StrategyActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
