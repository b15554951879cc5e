package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

func process(t *testing.T, a *Agent, cust *domain.CustomerContext) *domain.CustomerContext {
	t.Helper()
	out, err := a.Process(context.Background(), &ports.StageInput{Context: cust})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out.Context
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDefaultModels_ComputeAllScores(t *testing.T) {
	a := New()
	cust := domain.NewCustomerContext("c-1")
	cust.BehavioralSignals["days_since_activity"] = 45
	cust.BehavioralSignals["email_opens_30d"] = 5

	got := process(t, a, cust)

	for _, name := range []string{"churn_propensity", "purchase_propensity", "engagement_score"} {
		if _, ok := got.PropensityScores[name]; !ok {
			t.Errorf("missing score %q", name)
		}
	}
}

func TestChurnPropensity_Clamped(t *testing.T) {
	cust := domain.NewCustomerContext("c-2")
	cust.BehavioralSignals["days_since_activity"] = 900
	cust.BehavioralSignals["support_tickets_30d"] = 50

	score, err := churnPropensity(cust)
	if err != nil {
		t.Fatalf("churnPropensity() error = %v", err)
	}
	if !almostEqual(score, 1.0) {
		t.Errorf("score = %v, want 1.0", score)
	}
}

func TestChurnPropensity_Midrange(t *testing.T) {
	cust := domain.NewCustomerContext("c-3")
	cust.BehavioralSignals["days_since_activity"] = 45
	cust.BehavioralSignals["support_tickets_30d"] = 0

	score, err := churnPropensity(cust)
	if err != nil {
		t.Fatalf("churnPropensity() error = %v", err)
	}
	// 45/90 * 0.6 = 0.3
	if !almostEqual(score, 0.3) {
		t.Errorf("score = %v, want 0.3", score)
	}
}

func TestEngagementScore_FullEngagement(t *testing.T) {
	cust := domain.NewCustomerContext("c-4")
	cust.BehavioralSignals["email_opens_30d"] = 10
	cust.BehavioralSignals["clicks_30d"] = 20
	cust.BehavioralSignals["site_visits_30d"] = 15

	score, err := engagementScore(cust)
	if err != nil {
		t.Fatalf("engagementScore() error = %v", err)
	}
	if !almostEqual(score, 100.0) {
		t.Errorf("score = %v, want 100.0", score)
	}
}

func TestProcess_FailingModelIsolated(t *testing.T) {
	a := New(
		Model{Name: "broken", Score: func(*domain.CustomerContext) (float64, error) {
			return 0, errors.New("model unavailable")
		}},
		Model{Name: "constant", Score: func(*domain.CustomerContext) (float64, error) {
			return 0.42, nil
		}},
	)
	cust := domain.NewCustomerContext("c-5")

	got := process(t, a, cust)

	if _, ok := got.PropensityScores["broken"]; ok {
		t.Error("failing model should not produce a score")
	}
	if got.PropensityScores["constant"] != 0.42 {
		t.Errorf("constant score = %v, want 0.42", got.PropensityScores["constant"])
	}
	errs, _ := got.Metadata["scoring_errors"].(map[string]string)
	if errs["broken"] != "model unavailable" {
		t.Errorf("scoring_errors = %v", errs)
	}
}

func TestProcess_PanickingModelIsolated(t *testing.T) {
	a := New(
		Model{Name: "panicky", Score: func(*domain.CustomerContext) (float64, error) {
			panic("nil deref")
		}},
	)
	cust := domain.NewCustomerContext("c-6")

	got := process(t, a, cust)

	errs, _ := got.Metadata["scoring_errors"].(map[string]string)
	if len(errs) != 1 {
		t.Fatalf("scoring_errors = %v, want one entry", errs)
	}
}

func TestProcess_EmitsAuditRecord(t *testing.T) {
	a := New()
	cust := domain.NewCustomerContext("c-7")

	process(t, a, cust)

	log := a.AuditLog()
	if len(log) != 1 {
		t.Fatalf("len(AuditLog()) = %d, want 1", len(log))
	}
	if log[0].OutputSummary != "scores_computed=3" {
		t.Errorf("OutputSummary = %q", log[0].OutputSummary)
	}
}

func TestAddRemoveModel(t *testing.T) {
	a := New()
	a.AddModel("upsell", func(*domain.CustomerContext) (float64, error) { return 0.1, nil })

	if !a.RemoveModel("upsell") {
		t.Error("RemoveModel(upsell) = false, want true")
	}
	if a.RemoveModel("upsell") {
		t.Error("RemoveModel(upsell) second call = true, want false")
	}
}
