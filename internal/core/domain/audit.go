package domain

import "time"

// AuditRecord captures one stage execution for auditability and
// explainability. Records are immutable once created; the pipeline copies
// them into its merged trail rather than referencing stage-owned slices.
type AuditRecord struct {
	AgentName     string         `json:"agent_name"`
	Timestamp     time.Time      `json:"timestamp"`
	TraceID       string         `json:"trace_id"`
	InputSummary  string         `json:"input_summary,omitempty"`
	OutputSummary string         `json:"output_summary,omitempty"`
	DurationMS    float64        `json:"duration_ms"`
	Metadata      map[string]any `json:"metadata"`
}
