// Package audit provides the per-stage audit log every pipeline stage
// embeds to satisfy the stage contract.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
)

// Entry carries the caller-supplied fields of an audit record. Timestamp
// and trace id are generated at record time.
type Entry struct {
	InputSummary  string
	OutputSummary string
	Duration      time.Duration
	Metadata      map[string]any
}

// Recorder accumulates audit records for one named stage. The mutex makes
// it safe for the HTTP layer to read a stage's log while another request
// holds the pipeline; within a single execution access is sequential.
type Recorder struct {
	name string

	mu      sync.Mutex
	records []domain.AuditRecord
}

// NewRecorder creates an empty recorder for the named stage.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

// Name returns the stage's audit-log identity.
func (r *Recorder) Name() string { return r.name }

// Record appends a freshly stamped audit record and returns a copy of it.
func (r *Recorder) Record(e Entry) domain.AuditRecord {
	meta := e.Metadata
	if meta == nil {
		meta = make(map[string]any)
	}
	rec := domain.AuditRecord{
		AgentName:     r.name,
		Timestamp:     time.Now().UTC(),
		TraceID:       uuid.New().String(),
		InputSummary:  e.InputSummary,
		OutputSummary: e.OutputSummary,
		DurationMS:    float64(e.Duration) / float64(time.Millisecond),
		Metadata:      meta,
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	return rec
}

// AuditLog returns a copy of the accumulated records.
func (r *Recorder) AuditLog() []domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AuditRecord, len(r.records))
	copy(out, r.records)
	return out
}

// ClearAuditLog discards all accumulated records.
func (r *Recorder) ClearAuditLog() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
