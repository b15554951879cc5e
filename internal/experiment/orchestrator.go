// Package experiment owns A/B experiment definitions, sticky per-customer
// variant assignment, per-variant metrics, and uplift calculation.
package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// Orchestrator manages experiments and variant assignment. All maps are
// guarded by one orchestrator-wide mutex so concurrent pipeline executions
// and the HTTP API preserve the at-most-one-assignment invariant.
type Orchestrator struct {
	*audit.Recorder

	mu          sync.Mutex
	experiments map[string]*domain.Experiment
	// order holds experiment ids in creation order. The unpinned
	// experiment scan walks this slice so selection is deterministic
	// (map iteration order is not).
	order       []string
	assignments map[string]map[string]*domain.ExperimentResult
	metrics     map[string]map[string]*domain.ExperimentMetrics
	rng         *rand.Rand
}

var _ ports.Stage = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSeed fixes the random source so variant assignment is reproducible.
func WithSeed(seed int64) Option {
	return func(o *Orchestrator) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an empty orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Recorder:    audit.NewRecorder("ExperimentOrchestrator"),
		experiments: make(map[string]*domain.Experiment),
		assignments: make(map[string]map[string]*domain.ExperimentResult),
		metrics:     make(map[string]map[string]*domain.ExperimentMetrics),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateExperiment registers a new experiment in draft status with zeroed
// metrics per variant. Variants must be non-empty with unique ids.
func (o *Orchestrator) CreateExperiment(name string, variants []domain.ExperimentVariant, targetSegment, description string) (*domain.Experiment, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("experiment %q: at least one variant required", name)
	}
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if seen[v.VariantID] {
			return nil, fmt.Errorf("experiment %q: duplicate variant id %q", name, v.VariantID)
		}
		seen[v.VariantID] = true
	}

	exp := &domain.Experiment{
		ExperimentID:  uuid.New().String(),
		Name:          name,
		Description:   description,
		Status:        domain.ExperimentDraft,
		Variants:      variants,
		TargetSegment: targetSegment,
		CreatedAt:     time.Now().UTC(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.experiments[exp.ExperimentID] = exp
	o.order = append(o.order, exp.ExperimentID)

	o.metrics[exp.ExperimentID] = make(map[string]*domain.ExperimentMetrics, len(variants))
	for _, v := range variants {
		o.metrics[exp.ExperimentID][v.VariantID] = &domain.ExperimentMetrics{
			ExperimentID: exp.ExperimentID,
			VariantID:    v.VariantID,
		}
	}

	return exp, nil
}

// StartExperiment moves an experiment to running. The start date is
// stamped on the first start only; restarting a paused experiment keeps
// it. Returns false only for unknown ids; the transition table is
// otherwise permissive.
func (o *Orchestrator) StartExperiment(experimentID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	exp, ok := o.experiments[experimentID]
	if !ok {
		return false
	}
	exp.Status = domain.ExperimentRunning
	if exp.StartDate == nil {
		now := time.Now().UTC()
		exp.StartDate = &now
	}
	return true
}

// PauseExperiment suspends assignment for an experiment. Returns false
// only for unknown ids.
func (o *Orchestrator) PauseExperiment(experimentID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	exp, ok := o.experiments[experimentID]
	if !ok {
		return false
	}
	exp.Status = domain.ExperimentPaused
	return true
}

// CompleteExperiment terminates an experiment from any state and stamps
// its end date. Returns false only for unknown ids.
func (o *Orchestrator) CompleteExperiment(experimentID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	exp, ok := o.experiments[experimentID]
	if !ok {
		return false
	}
	exp.Status = domain.ExperimentCompleted
	now := time.Now().UTC()
	exp.EndDate = &now
	return true
}

// Assign resolves an experiment for the customer and returns the sticky
// variant assignment. With an empty experimentID the first running
// experiment (in creation order) whose target segment is unset or matches
// the customer's segment is used. Returns nil when no experiment applies;
// that path records nothing and emits no audit record. Re-delivery of an
// existing assignment is equally invisible: no randomness consumed, no
// impression counted, no audit record.
func (o *Orchestrator) Assign(cust *domain.CustomerContext, experimentID string) *domain.ExperimentResult {
	start := time.Now()

	o.mu.Lock()

	var exp *domain.Experiment
	if experimentID != "" {
		exp = o.experiments[experimentID]
	} else {
		for _, id := range o.order {
			candidate := o.experiments[id]
			if candidate.Status != domain.ExperimentRunning {
				continue
			}
			if candidate.TargetSegment == "" || candidate.TargetSegment == cust.Segment {
				exp = candidate
				break
			}
		}
	}

	if exp == nil {
		o.mu.Unlock()
		return nil
	}

	if existing, ok := o.assignments[cust.CustomerID][exp.ExperimentID]; ok {
		o.mu.Unlock()
		return existing
	}

	variant := o.selectVariant(exp.Variants)

	result := &domain.ExperimentResult{
		ExperimentID: exp.ExperimentID,
		VariantID:    variant.VariantID,
		VariantName:  variant.Name,
		CustomerID:   cust.CustomerID,
		AssignedAt:   time.Now().UTC(),
	}

	if o.assignments[cust.CustomerID] == nil {
		o.assignments[cust.CustomerID] = make(map[string]*domain.ExperimentResult)
	}
	o.assignments[cust.CustomerID][exp.ExperimentID] = result

	if m, ok := o.metrics[exp.ExperimentID][variant.VariantID]; ok {
		m.Impressions++
	}

	o.mu.Unlock()

	cust.Metadata["experiment_id"] = exp.ExperimentID
	cust.Metadata["variant_id"] = variant.VariantID
	cust.Metadata["variant_name"] = variant.Name

	o.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("customer_id=%s, experiment=%s", cust.CustomerID, exp.Name),
		OutputSummary: fmt.Sprintf("variant=%s", variant.Name),
		Duration:      time.Since(start),
		Metadata: map[string]any{
			"experiment_id": exp.ExperimentID,
			"variant_id":    variant.VariantID,
		},
	})

	return result
}

// Process adapts Assign to the pipeline stage contract.
func (o *Orchestrator) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	if in.Context == nil {
		return nil, fmt.Errorf("experiment: nil customer context")
	}
	result := o.Assign(in.Context, in.ExperimentID)
	return &ports.StageOutput{Context: in.Context, Assignment: result}, nil
}

// selectVariant draws a variant by cumulative weight. The draw is uniform
// in [0, totalWeight); the first variant whose cumulative weight exceeds
// the draw wins, with the last variant as the floating-point fallback.
// A zero total weight degenerates to a uniform draw. Caller holds o.mu.
func (o *Orchestrator) selectVariant(variants []domain.ExperimentVariant) domain.ExperimentVariant {
	var total float64
	for _, v := range variants {
		total += v.Weight
	}
	if total <= 0 {
		return variants[o.rng.Intn(len(variants))]
	}

	r := o.rng.Float64() * total
	var cumulative float64
	for _, v := range variants {
		cumulative += v.Weight
		if r < cumulative {
			return v
		}
	}
	return variants[len(variants)-1]
}

// RecordConversion counts a conversion for the customer's assignment in an
// experiment. Unknown (customer, experiment) pairs return false with no
// side effect. Repeat conversions are deliberately not de-duplicated so
// multi-touch value attribution works; callers needing uniqueness must
// de-duplicate externally.
func (o *Orchestrator) RecordConversion(customerID, experimentID string, value float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	result, ok := o.assignments[customerID][experimentID]
	if !ok {
		return false
	}

	if m, ok := o.metrics[experimentID][result.VariantID]; ok {
		m.Conversions++
		m.TotalValue += value

		if m.Impressions > 0 {
			m.ConversionRate = float64(m.Conversions) / float64(m.Impressions)
		}
		if m.Conversions > 0 {
			m.AverageValue = m.TotalValue / float64(m.Conversions)
		}
	}

	return true
}

// Metrics returns a copy of the per-variant metrics for an experiment.
// Unknown experiments yield an empty map.
func (o *Orchestrator) Metrics(experimentID string) map[string]domain.ExperimentMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]domain.ExperimentMetrics, len(o.metrics[experimentID]))
	for id, m := range o.metrics[experimentID] {
		out[id] = *m
	}
	return out
}

// CalculateUplift reports each variant's conversion-rate uplift relative
// to the control variant, in percent. Unknown experiment or control yields
// an empty map. A zero control rate yields 0.0 for every variant since
// uplift is undefined without a baseline.
func (o *Orchestrator) CalculateUplift(experimentID, controlVariantID string) map[string]float64 {
	metrics := o.Metrics(experimentID)

	control, ok := metrics[controlVariantID]
	if !ok {
		return map[string]float64{}
	}

	uplift := make(map[string]float64, len(metrics))
	if control.ConversionRate == 0 {
		for id := range metrics {
			uplift[id] = 0.0
		}
		return uplift
	}

	for id, m := range metrics {
		if id == controlVariantID {
			uplift[id] = 0.0
			continue
		}
		uplift[id] = (m.ConversionRate - control.ConversionRate) / control.ConversionRate * 100
	}
	return uplift
}

// Experiment returns an experiment by id.
func (o *Orchestrator) Experiment(experimentID string) (*domain.Experiment, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	exp, ok := o.experiments[experimentID]
	return exp, ok
}

// Experiments lists experiments in creation order, optionally filtered by
// status (empty status matches all).
func (o *Orchestrator) Experiments(status domain.ExperimentStatus) []*domain.Experiment {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*domain.Experiment, 0, len(o.order))
	for _, id := range o.order {
		exp := o.experiments[id]
		if status != "" && exp.Status != status {
			continue
		}
		out = append(out, exp)
	}
	return out
}
