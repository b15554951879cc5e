// Package ports defines the core interfaces for the personalization engine.
// This file contains the uniform stage contract the pipeline consumes.
package ports

import (
	"context"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
)

// StageInput is the data handed to a pipeline stage. Context is always
// present; the remaining fields are populated once an earlier stage has
// produced them.
type StageInput struct {
	// Context is the customer context threaded through the pipeline.
	Context *domain.CustomerContext
	// Content is the retrieved content item (composition stage input).
	Content *domain.ContentItem
	// Message is the composed message (safety stage input).
	Message *domain.Message
	// ExperimentID optionally pins the experiment stage to one experiment.
	ExperimentID string
}

// StageOutput is returned from a pipeline stage. A stage fills in the
// fields it produced; the pipeline carries them forward.
type StageOutput struct {
	Context      *domain.CustomerContext
	Content      *domain.ContentItem
	Message      *domain.Message
	SafetyReport *domain.SafetyCheckReport
	Assignment   *domain.ExperimentResult
}

// Stage is the uniform contract every pipeline stage implements: process an
// input, and keep a readable, clearable audit log of what was done. Audit
// log clearing is the pipeline's responsibility so shared stage instances
// stay reusable across executions.
type Stage interface {
	// Name returns the stage's audit-log identity.
	Name() string
	// Process executes the stage logic.
	Process(ctx context.Context, in *StageInput) (*StageOutput, error)
	// AuditLog returns the records accumulated since the last clear.
	AuditLog() []domain.AuditRecord
	// ClearAuditLog discards accumulated records.
	ClearAuditLog()
}
