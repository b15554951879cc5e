package memory

import (
	"context"
	"sync"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
	"github.com/pulsecraft/pulsecraft/internal/storage"
)

// Store is an in-memory implementation of RunStore. Runs survive only for
// the lifetime of the process.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*domain.PipelineResult
	order []string
}

var _ ports.RunStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs: make(map[string]*domain.PipelineResult),
	}
}

func (s *Store) SaveRun(ctx context.Context, result *domain.PipelineResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.PipelineID]; !exists {
		s.order = append(s.order, result.PipelineID)
	}
	s.runs[result.PipelineID] = result
	return nil
}

func (s *Store) GetRun(ctx context.Context, pipelineID string) (*domain.PipelineResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.runs[pipelineID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.RunSummary, 0, len(s.order))
	// Newest first.
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.runs[s.order[i]]
		summaries = append(summaries, domain.RunSummary{
			PipelineID: r.PipelineID,
			CustomerID: r.CustomerID,
			CreatedAt:  r.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *Store) Close() error {
	return nil
}
