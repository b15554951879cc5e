// Package segmentation assigns customers to segments by evaluating an
// ordered list of rules. The first matching rule wins; a rule that panics
// is skipped rather than failing the stage.
package segmentation

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// DefaultSegment is assigned when no rule matches.
const DefaultSegment = "default"

// Rule maps a segment name to a predicate over the customer context.
type Rule struct {
	Segment string
	Match   func(*domain.CustomerContext) bool
}

// Agent is the segmentation stage. Rules are evaluated in registration
// order so segment priority is deterministic.
type Agent struct {
	*audit.Recorder
	rules []Rule
}

var _ ports.Stage = (*Agent)(nil)

// New creates a segmentation agent. With no rules given, the default rule
// set is installed.
func New(rules ...Rule) *Agent {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Agent{
		Recorder: audit.NewRecorder("SegmentationAgent"),
		rules:    rules,
	}
}

// DefaultRules returns the built-in segmentation rules, highest priority
// first.
func DefaultRules() []Rule {
	return []Rule{
		{Segment: "high_value", Match: func(c *domain.CustomerContext) bool {
			return attrFloat(c, "lifetime_value") > 1000
		}},
		{Segment: "at_risk", Match: func(c *domain.CustomerContext) bool {
			return c.BehavioralSignals["days_since_activity"] > 30
		}},
		{Segment: "new_customer", Match: func(c *domain.CustomerContext) bool {
			return attrFloat(c, "tenure_days") < 30
		}},
		{Segment: "engaged", Match: func(c *domain.CustomerContext) bool {
			return c.BehavioralSignals["engagement_score"] > 70
		}},
	}
}

// Process evaluates all rules, assigns the first matching segment (or the
// default), and records the full match list in the context metadata.
func (a *Agent) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	start := time.Now()
	cust := in.Context
	if cust == nil {
		return nil, fmt.Errorf("segmentation: nil customer context")
	}

	var matching []string
	for _, rule := range a.rules {
		if safeMatch(rule, cust) {
			matching = append(matching, rule.Segment)
		}
	}

	segment := DefaultSegment
	if len(matching) > 0 {
		segment = matching[0]
	}

	cust.Segment = segment
	cust.Metadata["matching_segments"] = matching

	a.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("customer_id=%s", cust.CustomerID),
		OutputSummary: fmt.Sprintf("segment=%s", segment),
		Duration:      time.Since(start),
		Metadata:      map[string]any{"matching_segments": matching},
	})

	return &ports.StageOutput{Context: cust}, nil
}

// AddRule appends a rule at the lowest priority position. An existing rule
// for the same segment is replaced in place, keeping its priority.
func (a *Agent) AddRule(segment string, match func(*domain.CustomerContext) bool) {
	for i, r := range a.rules {
		if r.Segment == segment {
			a.rules[i].Match = match
			return
		}
	}
	a.rules = append(a.rules, Rule{Segment: segment, Match: match})
}

// RemoveRule deletes the rule for a segment, reporting whether it existed.
func (a *Agent) RemoveRule(segment string) bool {
	for i, r := range a.rules {
		if r.Segment == segment {
			a.rules = append(a.rules[:i], a.rules[i+1:]...)
			return true
		}
	}
	return false
}

// safeMatch evaluates a rule, treating a panic as a non-match.
func safeMatch(rule Rule, cust *domain.CustomerContext) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return rule.Match(cust)
}

// attrFloat reads a numeric attribute, tolerating the numeric types JSON
// decoding and callers produce.
func attrFloat(c *domain.CustomerContext, key string) float64 {
	switch v := c.Attributes[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
