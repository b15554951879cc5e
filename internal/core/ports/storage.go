package ports

import (
	"context"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
)

// RunStore persists pipeline results so runs can be replayed and listed by
// the demo API. The orchestration core itself never touches storage.
type RunStore interface {
	// SaveRun stores one pipeline result keyed by its pipeline id.
	SaveRun(ctx context.Context, result *domain.PipelineResult) error

	// GetRun returns the stored result, or an error if the id is unknown.
	GetRun(ctx context.Context, pipelineID string) (*domain.PipelineResult, error)

	// ListRuns returns summaries of all stored runs, newest first.
	ListRuns(ctx context.Context) ([]domain.RunSummary, error)

	Close() error
}
