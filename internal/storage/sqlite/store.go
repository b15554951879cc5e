package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
	"github.com/pulsecraft/pulsecraft/internal/storage"
)

// Store is a SQLite implementation of RunStore. The full result is stored
// as a JSON document alongside the columns the list endpoint needs.
type Store struct {
	db *sql.DB
}

var _ ports.RunStore = (*Store)(nil)

// New creates a new SQLite store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			pipeline_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			is_success INTEGER NOT NULL DEFAULT 0,
			result TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_customer ON runs(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveRun(ctx context.Context, result *domain.PipelineResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `INSERT INTO runs (pipeline_id, customer_id, is_success, result, created_at)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT(pipeline_id) DO UPDATE SET
	              customer_id=excluded.customer_id,
	              is_success=excluded.is_success,
	              result=excluded.result,
	              created_at=excluded.created_at`

	_, err = s.db.ExecContext(ctx, query,
		result.PipelineID, result.CustomerID, result.IsSuccess, string(doc), result.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

func (s *Store) GetRun(ctx context.Context, pipelineID string) (*domain.PipelineResult, error) {
	query := `SELECT result FROM runs WHERE pipeline_id = ?`

	var doc string
	err := s.db.QueryRowContext(ctx, query, pipelineID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result domain.PipelineResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	query := `SELECT pipeline_id, customer_id, created_at
	          FROM runs ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := []domain.RunSummary{}
	for rows.Next() {
		var summary domain.RunSummary
		if err := rows.Scan(&summary.PipelineID, &summary.CustomerID, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
