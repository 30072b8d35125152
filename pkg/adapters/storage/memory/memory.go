package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/reelgen/internal/domain"
)

// RunStore implements ports.RunStore using an in-memory map.
// Used when no REDIS_URL is configured, and in tests.
type RunStore struct {
	runs map[string]*domain.Run
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*domain.Run),
	}
}

// Save persists a deep copy of the run (ports.RunStore interface)
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Deep copy to avoid mutations through retained pointers
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get retrieves a deep copy of a run (ports.RunStore interface)
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}

	return run.Clone(), nil
}

// Delete removes a run record (ports.RunStore interface)
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// List returns deep copies of all stored runs (ports.RunStore interface)
func (s *RunStore) List(ctx context.Context) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run.Clone())
	}

	return runs, nil
}
