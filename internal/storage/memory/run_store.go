package memory

import (
	"context"
	"sync"

	"github.com/volcanotrek/slotwatch/internal/crawl"
	"github.com/volcanotrek/slotwatch/internal/storage"
)

// RunStore is a mutex-guarded run tracker.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]crawl.Run
	// order preserves insertion so Latest can break started_at ties the
	// way Postgres does with its sequential inserts.
	order []string
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]crawl.Run)}
}

// Create inserts a freshly queued run.
func (s *RunStore) Create(_ context.Context, run crawl.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return nil
}

// SetStatus mutates a run's status and summary message.
func (s *RunStore) SetStatus(_ context.Context, id string, status crawl.RunStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return storage.ErrNotFound
	}
	run.Status = status
	run.Message = message
	s.runs[id] = run
	return nil
}

// Latest returns the most recently created run for a category.
func (s *RunStore) Latest(_ context.Context, category string) (crawl.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if run.Category == category {
			return run, nil
		}
	}
	return crawl.Run{}, storage.ErrNotFound
}

// Get returns a run by ID (test helper parity with the Postgres store).
func (s *RunStore) Get(_ context.Context, id string) (crawl.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return crawl.Run{}, storage.ErrNotFound
	}
	return run, nil
}

// All returns every run, oldest first (audit-trail inspection in tests).
func (s *RunStore) All(_ context.Context) []crawl.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id])
	}
	return out
}
