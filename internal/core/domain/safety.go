package domain

// SafetyCheckResult is the outcome of a single safety check.
type SafetyCheckResult string

const (
	// SafetyPass indicates the check found no issue.
	SafetyPass SafetyCheckResult = "pass"
	// SafetyWarn indicates a non-blocking concern.
	SafetyWarn SafetyCheckResult = "warn"
	// SafetyFail indicates the message must not be sent.
	SafetyFail SafetyCheckResult = "fail"
)

// CheckFinding is one named safety check observation.
type CheckFinding struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// SafetyCheckReport aggregates the findings of all safety checks run
// against one message. Failures block sending; warnings do not.
type SafetyCheckReport struct {
	MessageID     string            `json:"message_id"`
	OverallResult SafetyCheckResult `json:"overall_result"`
	ChecksPassed  []CheckFinding    `json:"checks_passed"`
	ChecksWarned  []CheckFinding    `json:"checks_warned"`
	ChecksFailed  []CheckFinding    `json:"checks_failed"`
	IsSafeToSend  bool              `json:"is_safe_to_send"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}
