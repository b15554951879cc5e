// Package safety validates composed messages before sending. Checks are
// pluggable; failures block sending while warnings do not.
package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// unresolvedPattern detects template placeholders that survived
// composition.
var unresolvedPattern = regexp.MustCompile(`\{[^}]+\}`)

// genericMarkers suggest a message was not properly personalized.
var genericMarkers = []string{"Valued Customer", "Dear Customer", "Hello Friend"}

// CheckFunc inspects a message and returns a result plus a human-readable
// detail string.
type CheckFunc func(*domain.Message) (domain.SafetyCheckResult, string)

// Check is one named safety check.
type Check struct {
	Name string
	Run  CheckFunc
}

// Checker is the safety check stage.
type Checker struct {
	*audit.Recorder
	checks   []Check
	patterns []blockedPattern
}

type blockedPattern struct {
	source string
	re     *regexp.Regexp
}

var _ ports.Stage = (*Checker)(nil)

// DefaultBlockedPatterns returns the stock blocked-content regexes:
// guarantee claims, spam-like phrases, and high-pressure tactics.
func DefaultBlockedPatterns() []string {
	return []string{
		`(?i)\b(guarantee|guaranteed)\b`,
		`(?i)\b(free money|get rich)\b`,
		`(?i)\b(act now|limited time|urgent)\b`,
	}
}

// New creates a checker with the default check set and the given blocked
// patterns (nil means the defaults). Invalid patterns are rejected.
func New(blockedPatterns []string) (*Checker, error) {
	if blockedPatterns == nil {
		blockedPatterns = DefaultBlockedPatterns()
	}

	c := &Checker{
		Recorder: audit.NewRecorder("SafetyCheckAgent"),
	}
	for _, p := range blockedPatterns {
		if err := c.AddBlockedPattern(p); err != nil {
			return nil, err
		}
	}

	c.checks = []Check{
		{Name: "content_length", Run: checkContentLength},
		{Name: "blocked_patterns", Run: c.checkBlockedPatterns},
		{Name: "personalization", Run: checkPersonalization},
		{Name: "empty_content", Run: checkEmptyContent},
	}
	return c, nil
}

func checkContentLength(msg *domain.Message) (domain.SafetyCheckResult, string) {
	switch n := utf8.RuneCountInString(msg.Content); {
	case n == 0:
		return domain.SafetyFail, "Message content is empty"
	case n < 10:
		return domain.SafetyWarn, "Message content is very short"
	case n > 1000:
		return domain.SafetyWarn, "Message content is very long"
	default:
		return domain.SafetyPass, "Content length is appropriate"
	}
}

func (c *Checker) checkBlockedPatterns(msg *domain.Message) (domain.SafetyCheckResult, string) {
	for _, p := range c.patterns {
		if p.re.MatchString(msg.Content) {
			return domain.SafetyFail, fmt.Sprintf("Content contains blocked pattern: %s", p.source)
		}
	}
	return domain.SafetyPass, "No blocked patterns found"
}

func checkPersonalization(msg *domain.Message) (domain.SafetyCheckResult, string) {
	if unresolvedPattern.MatchString(msg.Content) {
		return domain.SafetyFail, "Message contains unresolved template placeholders"
	}
	for _, marker := range genericMarkers {
		if strings.Contains(msg.Content, marker) {
			return domain.SafetyWarn, fmt.Sprintf("Message may not be properly personalized: %q", marker)
		}
	}
	return domain.SafetyPass, "Message appears personalized"
}

func checkEmptyContent(msg *domain.Message) (domain.SafetyCheckResult, string) {
	if strings.TrimSpace(msg.Content) == "" {
		return domain.SafetyFail, "Message content is empty or whitespace only"
	}
	return domain.SafetyPass, "Message has content"
}

// Process runs every check against the message and aggregates a report.
// A check that panics is recorded as a failure finding, not a stage error.
func (c *Checker) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	start := time.Now()
	msg := in.Message
	if msg == nil {
		return nil, fmt.Errorf("safety: no message to check")
	}

	report := &domain.SafetyCheckReport{
		MessageID:     msg.MessageID,
		OverallResult: domain.SafetyPass,
		ChecksPassed:  []domain.CheckFinding{},
		ChecksWarned:  []domain.CheckFinding{},
		ChecksFailed:  []domain.CheckFinding{},
		IsSafeToSend:  true,
	}

	for _, check := range c.checks {
		result, detail := runCheck(check, msg)
		finding := domain.CheckFinding{Name: check.Name, Detail: detail}
		switch result {
		case domain.SafetyPass:
			report.ChecksPassed = append(report.ChecksPassed, finding)
		case domain.SafetyWarn:
			report.ChecksWarned = append(report.ChecksWarned, finding)
		default:
			report.ChecksFailed = append(report.ChecksFailed, finding)
		}
	}

	switch {
	case len(report.ChecksFailed) > 0:
		report.OverallResult = domain.SafetyFail
		report.IsSafeToSend = false
	case len(report.ChecksWarned) > 0:
		report.OverallResult = domain.SafetyWarn
	}

	msg.SafetyChecks = map[string]any{
		"overall_result":  string(report.OverallResult),
		"is_safe_to_send": report.IsSafeToSend,
		"checks_passed":   len(report.ChecksPassed),
		"checks_warned":   len(report.ChecksWarned),
		"checks_failed":   len(report.ChecksFailed),
	}

	c.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("message_id=%s", msg.MessageID),
		OutputSummary: fmt.Sprintf("result=%s, safe=%t", report.OverallResult, report.IsSafeToSend),
		Duration:      time.Since(start),
		Metadata: map[string]any{
			"checks_passed": len(report.ChecksPassed),
			"checks_warned": len(report.ChecksWarned),
			"checks_failed": len(report.ChecksFailed),
		},
	})

	return &ports.StageOutput{Context: in.Context, Message: msg, SafetyReport: report}, nil
}

// AddCheck registers a check at the end of the run order, replacing any
// existing check with the same name in place.
func (c *Checker) AddCheck(name string, run CheckFunc) {
	for i, check := range c.checks {
		if check.Name == name {
			c.checks[i].Run = run
			return
		}
	}
	c.checks = append(c.checks, Check{Name: name, Run: run})
}

// RemoveCheck deletes a check by name, reporting whether it existed.
func (c *Checker) RemoveCheck(name string) bool {
	for i, check := range c.checks {
		if check.Name == name {
			c.checks = append(c.checks[:i], c.checks[i+1:]...)
			return true
		}
	}
	return false
}

// AddBlockedPattern compiles and registers a blocked-content regex.
func (c *Checker) AddBlockedPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("blocked pattern %q: %w", pattern, err)
	}
	c.patterns = append(c.patterns, blockedPattern{source: pattern, re: re})
	return nil
}

// RemoveBlockedPattern deletes a pattern by its source text, reporting
// whether it existed.
func (c *Checker) RemoveBlockedPattern(pattern string) bool {
	for i, p := range c.patterns {
		if p.source == pattern {
			c.patterns = append(c.patterns[:i], c.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// runCheck executes a check, converting a panic into a failure finding.
func runCheck(check Check, msg *domain.Message) (result domain.SafetyCheckResult, detail string) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.SafetyFail
			detail = fmt.Sprintf("Check panicked: %v", r)
		}
	}()
	return check.Run(msg)
}
