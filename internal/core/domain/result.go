package domain

import (
	"encoding/json"
	"time"
)

// PipelineResult is the outcome of one pipeline execution. It is immutable
// after the execution completes and is appended to the pipeline's execution
// history. A failed execution still yields a well-formed result with the
// partial audit trail collected up to the failure point.
type PipelineResult struct {
	PipelineID        string             `json:"pipeline_id"`
	CustomerID        string             `json:"customer_id"`
	Message           *Message           `json:"-"`
	SafetyReport      *SafetyCheckReport `json:"safety_report,omitempty"`
	IsSuccess         bool               `json:"is_success"`
	IsSafeToSend      bool               `json:"is_safe_to_send"`
	ExperimentVariant string             `json:"experiment_variant,omitempty"`
	Segment           string             `json:"segment,omitempty"`
	PropensityScores  map[string]float64 `json:"propensity_scores"`
	AuditTrail        []AuditRecord      `json:"audit_trail"`
	ExecutionTimeMS   float64            `json:"execution_time_ms"`
	CreatedAt         time.Time          `json:"created_at"`
	Error             string             `json:"error,omitempty"`
}

// resultAlias breaks the MarshalJSON recursion.
type resultAlias PipelineResult

// externalResult is the serialized shape consumed by external callers. The
// composed message is flattened to message_id/message_content.
type externalResult struct {
	*resultAlias
	MessageID      string `json:"message_id,omitempty"`
	MessageContent string `json:"message_content,omitempty"`
}

// MarshalJSON flattens the composed message into the flat external shape.
func (r PipelineResult) MarshalJSON() ([]byte, error) {
	out := externalResult{resultAlias: (*resultAlias)(&r)}
	if r.Message != nil {
		out.MessageID = r.Message.MessageID
		out.MessageContent = r.Message.Content
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs a minimal Message from the flattened fields.
func (r *PipelineResult) UnmarshalJSON(data []byte) error {
	in := externalResult{resultAlias: (*resultAlias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.MessageID != "" || in.MessageContent != "" {
		r.Message = &Message{
			MessageID:  in.MessageID,
			Content:    in.MessageContent,
			CustomerID: r.CustomerID,
			CreatedAt:  r.CreatedAt,
		}
	}
	return nil
}

// RunSummary identifies one stored pipeline run.
type RunSummary struct {
	PipelineID string    `json:"pipeline_id"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PipelineStats aggregates the execution history.
type PipelineStats struct {
	TotalExecutions        int     `json:"total_executions"`
	SuccessRate            float64 `json:"success_rate"`
	SafeToSendRate         float64 `json:"safe_to_send_rate"`
	AverageExecutionTimeMS float64 `json:"average_execution_time_ms"`
}
