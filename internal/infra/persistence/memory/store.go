// Package memory provides an in-process realization result store, used by
// tests and by runs that only need results for the lifetime of the process.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"carboncore/pkg/domain"
)

var _ domain.ResultStore = (*Store)(nil)

// Store keeps results keyed by run and realization. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	runs map[string]map[int]domain.RealizationResult
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{runs: make(map[string]map[int]domain.RealizationResult)}
}

// Save implements domain.ResultStore.
func (s *Store) Save(ctx context.Context, result domain.RealizationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.RunID == "" {
		return errors.New("memory store: run id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[result.RunID]
	if !ok {
		run = make(map[int]domain.RealizationResult)
		s.runs[result.RunID] = run
	}
	run[result.Realization] = result.Clone()
	return nil
}

// List implements domain.ResultStore.
func (s *Store) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run := s.runs[runID]
	out := make([]domain.RealizationResult, 0, len(run))
	for _, r := range run {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Realization < out[j].Realization })
	return out, nil
}

// Runs returns the run ids held by the store, sorted.
func (s *Store) Runs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.runs))
	for id := range s.runs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
