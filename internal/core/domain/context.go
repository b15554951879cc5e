// Package domain holds the shared data model for the personalization
// pipeline: the customer context threaded through every stage, the audit
// records stages emit, and the experiment and pipeline result types.
package domain

// CustomerContext is the mutable record threaded through all pipeline
// stages. It is owned by exactly one pipeline execution at a time and must
// not be shared across concurrent executions.
type CustomerContext struct {
	// CustomerID is stable and immutable after creation.
	CustomerID string `json:"customer_id"`

	// Segment is set exactly once per pipeline run by the segmentation stage.
	Segment string `json:"segment,omitempty"`

	// Attributes are externally supplied static profile facts.
	Attributes map[string]any `json:"attributes"`

	// BehavioralSignals are externally supplied time-windowed metrics.
	BehavioralSignals map[string]float64 `json:"behavioral_signals"`

	// PropensityScores are accumulated by the signal scoring stage.
	PropensityScores map[string]float64 `json:"propensity_scores"`

	// Metadata is an advisory annotation bag written by any stage. It is
	// not authoritative state.
	Metadata map[string]any `json:"metadata"`
}

// NewCustomerContext creates a context with initialized maps.
func NewCustomerContext(customerID string) *CustomerContext {
	return &CustomerContext{
		CustomerID:        customerID,
		Attributes:        make(map[string]any),
		BehavioralSignals: make(map[string]float64),
		PropensityScores:  make(map[string]float64),
		Metadata:          make(map[string]any),
	}
}
