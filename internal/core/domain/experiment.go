package domain

import "time"

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	// ExperimentDraft is the initial state after creation.
	ExperimentDraft ExperimentStatus = "draft"
	// ExperimentRunning means the experiment accepts assignments.
	ExperimentRunning ExperimentStatus = "running"
	// ExperimentPaused means assignment is suspended but resumable.
	ExperimentPaused ExperimentStatus = "paused"
	// ExperimentCompleted is terminal.
	ExperimentCompleted ExperimentStatus = "completed"
)

// ExperimentVariant is one arm of an experiment. Variants are fixed after
// experiment creation; customers already assigned to a variant are never
// retroactively reassigned.
type ExperimentVariant struct {
	// VariantID is unique within the experiment.
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	// Weight is a non-negative relative traffic share. Weights need not
	// sum to 1.
	Weight    float64        `json:"weight"`
	ContentID string         `json:"content_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Experiment is an A/B experiment configuration. It is owned by the
// experiment orchestrator for its whole lifetime; pipeline stages never
// mutate it directly.
type Experiment struct {
	ExperimentID  string              `json:"experiment_id"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        ExperimentStatus    `json:"status"`
	Variants      []ExperimentVariant `json:"variants"`
	TargetSegment string              `json:"target_segment,omitempty"`
	StartDate     *time.Time          `json:"start_date,omitempty"`
	EndDate       *time.Time          `json:"end_date,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

// ExperimentResult records one sticky (customer, experiment) assignment.
// At most one exists per pair for the lifetime of the orchestrator.
type ExperimentResult struct {
	ExperimentID string    `json:"experiment_id"`
	VariantID    string    `json:"variant_id"`
	VariantName  string    `json:"variant_name"`
	CustomerID   string    `json:"customer_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// ExperimentMetrics tracks per-variant counters. Counters are only ever
// incremented; the derived rates are recomputed from the running totals on
// every conversion rather than incrementally averaged.
type ExperimentMetrics struct {
	ExperimentID   string  `json:"experiment_id"`
	VariantID      string  `json:"variant_id"`
	Impressions    int     `json:"impressions"`
	Conversions    int     `json:"conversions"`
	TotalValue     float64 `json:"total_value"`
	ConversionRate float64 `json:"conversion_rate"`
	AverageValue   float64 `json:"average_value"`
}
