package safety

import (
	"context"
	"strings"
	"testing"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

func check(t *testing.T, c *Checker, content string) *domain.SafetyCheckReport {
	t.Helper()
	msg := &domain.Message{MessageID: "m-1", Content: content}
	out, err := c.Process(context.Background(), &ports.StageInput{Message: msg})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out.SafetyReport
}

func newChecker(t *testing.T) *Checker {
	t.Helper()
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestProcess_CleanMessagePasses(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "Hi Ada, thanks for being with us!")

	if report.OverallResult != domain.SafetyPass {
		t.Errorf("OverallResult = %v, want pass (failed: %v, warned: %v)",
			report.OverallResult, report.ChecksFailed, report.ChecksWarned)
	}
	if !report.IsSafeToSend {
		t.Error("IsSafeToSend = false for clean message")
	}
}

func TestProcess_BlockedPatternFails(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "Hi Ada, we guarantee you will love this.")

	if report.OverallResult != domain.SafetyFail {
		t.Errorf("OverallResult = %v, want fail", report.OverallResult)
	}
	if report.IsSafeToSend {
		t.Error("IsSafeToSend = true for blocked content")
	}
}

func TestProcess_UnresolvedPlaceholderFails(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "Hi {customer_name}, your order has shipped.")

	if report.IsSafeToSend {
		t.Error("IsSafeToSend = true for unresolved placeholder")
	}
}

func TestProcess_GenericMarkerWarnsButSends(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "Hi Valued Customer, thanks for being with us!")

	if report.OverallResult != domain.SafetyWarn {
		t.Errorf("OverallResult = %v, want warn", report.OverallResult)
	}
	if !report.IsSafeToSend {
		t.Error("IsSafeToSend = false, warnings must not block sending")
	}
}

func TestProcess_EmptyContentFails(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "   ")

	if report.IsSafeToSend {
		t.Error("IsSafeToSend = true for whitespace-only content")
	}
	if len(report.ChecksFailed) == 0 {
		t.Error("expected at least one failed check")
	}
}

func TestProcess_VeryLongContentWarns(t *testing.T) {
	c := newChecker(t)

	report := check(t, c, "Hi Ada, "+strings.Repeat("news! ", 200))

	if report.OverallResult != domain.SafetyWarn {
		t.Errorf("OverallResult = %v, want warn for long content", report.OverallResult)
	}
}

func TestProcess_LengthCountsRunes(t *testing.T) {
	c := newChecker(t)

	// Over 1000 bytes but well under 1000 characters.
	report := check(t, c, "Hi Ada, "+strings.Repeat("é", 600))

	if report.OverallResult != domain.SafetyPass {
		t.Errorf("OverallResult = %v, want pass for multi-byte content under the limit", report.OverallResult)
	}
}

func TestProcess_UpdatesMessageSummary(t *testing.T) {
	c := newChecker(t)
	msg := &domain.Message{MessageID: "m-2", Content: "Hi Ada, thanks for being with us!"}

	_, err := c.Process(context.Background(), &ports.StageInput{Message: msg})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if msg.SafetyChecks["overall_result"] != "pass" {
		t.Errorf("message safety summary = %v", msg.SafetyChecks)
	}
}

func TestProcess_PanickingCheckRecordedAsFailure(t *testing.T) {
	c := newChecker(t)
	c.AddCheck("explosive", func(*domain.Message) (domain.SafetyCheckResult, string) {
		panic("boom")
	})

	report := check(t, c, "Hi Ada, thanks for being with us!")

	if report.IsSafeToSend {
		t.Error("IsSafeToSend = true despite panicking check")
	}
	found := false
	for _, f := range report.ChecksFailed {
		if f.Name == "explosive" {
			found = true
		}
	}
	if !found {
		t.Errorf("panicking check missing from failures: %v", report.ChecksFailed)
	}
}

func TestProcess_NilMessage(t *testing.T) {
	c := newChecker(t)

	if _, err := c.Process(context.Background(), &ports.StageInput{}); err == nil {
		t.Error("expected error for nil message")
	}
}

func TestAddRemoveBlockedPattern(t *testing.T) {
	c := newChecker(t)

	if err := c.AddBlockedPattern(`(?i)\bcrypto\b`); err != nil {
		t.Fatalf("AddBlockedPattern() error = %v", err)
	}
	report := check(t, c, "Hi Ada, invest in crypto today!")
	if report.IsSafeToSend {
		t.Error("IsSafeToSend = true for custom blocked pattern")
	}

	if !c.RemoveBlockedPattern(`(?i)\bcrypto\b`) {
		t.Error("RemoveBlockedPattern = false")
	}
	report = check(t, c, "Hi Ada, invest in crypto today!")
	if !report.IsSafeToSend {
		t.Error("IsSafeToSend = false after pattern removed")
	}
}

func TestAddBlockedPattern_Invalid(t *testing.T) {
	c := newChecker(t)

	if err := c.AddBlockedPattern(`([unclosed`); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestRemoveCheck(t *testing.T) {
	c := newChecker(t)

	if !c.RemoveCheck("personalization") {
		t.Fatal("RemoveCheck(personalization) = false")
	}

	// With the personalization check gone, placeholders pass.
	report := check(t, c, "Hi {customer_name}, your order has shipped.")
	if !report.IsSafeToSend {
		t.Error("IsSafeToSend = false after removing personalization check")
	}
}
