// Package scoring computes propensity scores from behavioral signals using
// an ordered set of pluggable scoring models.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// Model converts raw behavioral data into one named score. A failing model
// is recorded in the context metadata and skipped, never fatal.
type Model struct {
	Name  string
	Score func(*domain.CustomerContext) (float64, error)
}

// Agent is the signal scoring stage.
type Agent struct {
	*audit.Recorder
	models []Model
}

var _ ports.Stage = (*Agent)(nil)

// New creates a scoring agent. With no models given, the default model set
// is installed.
func New(models ...Model) *Agent {
	if len(models) == 0 {
		models = DefaultModels()
	}
	return &Agent{
		Recorder: audit.NewRecorder("SignalScoringAgent"),
		models:   models,
	}
}

// DefaultModels returns the built-in heuristic scoring models.
func DefaultModels() []Model {
	return []Model{
		{Name: "churn_propensity", Score: churnPropensity},
		{Name: "purchase_propensity", Score: purchasePropensity},
		{Name: "engagement_score", Score: engagementScore},
	}
}

// churnPropensity scores inactivity and support load on a 0-1 scale.
func churnPropensity(c *domain.CustomerContext) (float64, error) {
	daysInactive := c.BehavioralSignals["days_since_activity"]
	tickets := c.BehavioralSignals["support_tickets_30d"]

	base := min(daysInactive/90.0, 1.0) * 0.6
	ticketFactor := min(tickets/5.0, 1.0) * 0.4

	return min(base+ticketFactor, 1.0), nil
}

// purchasePropensity scores recent shopping intent on a 0-1 scale.
func purchasePropensity(c *domain.CustomerContext) (float64, error) {
	views := c.BehavioralSignals["product_views_7d"]
	cartAdds := c.BehavioralSignals["cart_additions_7d"]
	purchases := attrFloat(c, "total_purchases")

	viewScore := min(views/20.0, 1.0) * 0.3
	cartScore := min(cartAdds/5.0, 1.0) * 0.4
	historyScore := min(purchases/10.0, 1.0) * 0.3

	return min(viewScore+cartScore+historyScore, 1.0), nil
}

// engagementScore scores channel engagement on a 0-100 scale.
func engagementScore(c *domain.CustomerContext) (float64, error) {
	opens := c.BehavioralSignals["email_opens_30d"]
	clicks := c.BehavioralSignals["clicks_30d"]
	visits := c.BehavioralSignals["site_visits_30d"]

	score := min(opens/10.0, 1.0)*30 +
		min(clicks/20.0, 1.0)*40 +
		min(visits/15.0, 1.0)*30

	return min(score, 100.0), nil
}

// Process runs every model, merging successful scores into the context and
// collecting per-model errors into the metadata.
func (a *Agent) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	start := time.Now()
	cust := in.Context
	if cust == nil {
		return nil, fmt.Errorf("scoring: nil customer context")
	}

	computed := make([]string, 0, len(a.models))
	errs := make(map[string]string)

	for _, m := range a.models {
		score, err := safeScore(m, cust)
		if err != nil {
			errs[m.Name] = err.Error()
			continue
		}
		cust.PropensityScores[m.Name] = score
		computed = append(computed, m.Name)
	}

	cust.Metadata["scoring_errors"] = errs

	a.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("customer_id=%s, signals=%d", cust.CustomerID, len(cust.BehavioralSignals)),
		OutputSummary: fmt.Sprintf("scores_computed=%d", len(computed)),
		Duration:      time.Since(start),
		Metadata: map[string]any{
			"computed_scores": computed,
			"errors":          errs,
		},
	})

	return &ports.StageOutput{Context: cust}, nil
}

// AddModel registers a model at the end of the evaluation order, replacing
// any existing model with the same name in place.
func (a *Agent) AddModel(name string, score func(*domain.CustomerContext) (float64, error)) {
	for i, m := range a.models {
		if m.Name == name {
			a.models[i].Score = score
			return
		}
	}
	a.models = append(a.models, Model{Name: name, Score: score})
}

// RemoveModel deletes a model by name, reporting whether it existed.
func (a *Agent) RemoveModel(name string) bool {
	for i, m := range a.models {
		if m.Name == name {
			a.models = append(a.models[:i], a.models[i+1:]...)
			return true
		}
	}
	return false
}

// safeScore runs a model, converting a panic into an error.
func safeScore(m Model, cust *domain.CustomerContext) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("model panic: %v", r)
		}
	}()
	return m.Score(cust)
}

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
