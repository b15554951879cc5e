package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsecraft/pulsecraft/internal/composition"
	"github.com/pulsecraft/pulsecraft/internal/content"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
	"github.com/pulsecraft/pulsecraft/internal/experiment"
	"github.com/pulsecraft/pulsecraft/internal/safety"
	"github.com/pulsecraft/pulsecraft/internal/scoring"
	"github.com/pulsecraft/pulsecraft/internal/segmentation"
)

// Config supplies the stage collaborators. Nil fields are filled with
// default-constructed stages.
type Config struct {
	Segmentation ports.Stage
	Scoring      ports.Stage
	Experiments  ports.Stage
	Content      ports.Stage
	Composition  ports.Stage
	Safety       ports.Stage
}

// Pipeline drives a customer context through segmentation, signal scoring,
// experiment assignment, content retrieval, message composition, and
// safety validation, in that order. The pipeline exclusively owns its
// stage instances; after each stage run it copies the stage's audit
// records into the execution's trail and clears the stage's own log so
// shared stages never accumulate cross-execution noise.
type Pipeline struct {
	segmentation ports.Stage
	scoring      ports.Stage
	experiments  ports.Stage
	content      ports.Stage
	composition  ports.Stage
	safety       ports.Stage

	tracer trace.Tracer

	// mu serializes executions and guards the history. The engine is
	// defined as single-threaded; the lock lets concurrent callers (the
	// HTTP layer) share one pipeline without racing stage audit logs.
	mu      sync.Mutex
	history []*domain.PipelineResult
}

// ExecuteOptions tune one pipeline execution.
type ExecuteOptions struct {
	// ExperimentID pins the experiment stage to a specific experiment.
	ExperimentID string
	// SkipSafetyCheck bypasses the safety stage entirely and forces
	// is_safe_to_send true. Reserved for trusted/internal flows.
	SkipSafetyCheck bool
}

// New creates a pipeline from the given stage collaborators.
func New(cfg Config) (*Pipeline, error) {
	p := &Pipeline{
		segmentation: cfg.Segmentation,
		scoring:      cfg.Scoring,
		experiments:  cfg.Experiments,
		content:      cfg.Content,
		composition:  cfg.Composition,
		safety:       cfg.Safety,
		tracer:       otel.Tracer("pulsecraft/pipeline"),
	}
	if p.segmentation == nil {
		p.segmentation = segmentation.New()
	}
	if p.scoring == nil {
		p.scoring = scoring.New()
	}
	if p.experiments == nil {
		p.experiments = experiment.New()
	}
	if p.content == nil {
		p.content = content.New()
	}
	if p.composition == nil {
		p.composition = composition.New(composition.BrandVoice{})
	}
	if p.safety == nil {
		checker, err := safety.New(nil)
		if err != nil {
			return nil, err
		}
		p.safety = checker
	}
	return p, nil
}

// Execute runs the full pipeline for one customer. It never returns an
// error: a stage failure aborts the remaining stages, and the partially
// filled result is returned with IsSuccess false, the failure description,
// and whatever audit records were collected up to that point. Every
// execution is appended to the history exactly once.
func (p *Pipeline) Execute(ctx context.Context, cust *domain.CustomerContext, opts ExecuteOptions) *domain.PipelineResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("customer.id", cust.CustomerID)))
	defer span.End()

	result := &domain.PipelineResult{
		PipelineID:       uuid.New().String(),
		CustomerID:       cust.CustomerID,
		PropensityScores: map[string]float64{},
		AuditTrail:       []domain.AuditRecord{},
		CreatedAt:        time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("pipeline.id", result.PipelineID))

	err := p.run(ctx, cust, opts, result)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
	} else {
		result.IsSuccess = true
	}

	result.ExecutionTimeMS = float64(time.Since(start)) / float64(time.Millisecond)
	p.history = append(p.history, result)

	return result
}

// run executes the stage sequence, filling the result as stages complete.
func (p *Pipeline) run(ctx context.Context, cust *domain.CustomerContext, opts ExecuteOptions, result *domain.PipelineResult) error {
	in := &ports.StageInput{Context: cust, ExperimentID: opts.ExperimentID}

	out, err := p.runStage(ctx, p.segmentation, in, result)
	if err != nil {
		return err
	}
	in.Context = out.Context
	result.Segment = in.Context.Segment

	out, err = p.runStage(ctx, p.scoring, in, result)
	if err != nil {
		return err
	}
	in.Context = out.Context
	for name, score := range in.Context.PropensityScores {
		result.PropensityScores[name] = score
	}

	out, err = p.runStage(ctx, p.experiments, in, result)
	if err != nil {
		return err
	}
	if out.Assignment != nil {
		result.ExperimentVariant = out.Assignment.VariantName
	}

	out, err = p.runStage(ctx, p.content, in, result)
	if err != nil {
		return err
	}
	in.Content = out.Content

	out, err = p.runStage(ctx, p.composition, in, result)
	if err != nil {
		return err
	}
	in.Message = out.Message
	result.Message = out.Message

	if opts.SkipSafetyCheck {
		// Deliberate override: no safety logic runs, no safety audit
		// record appears.
		result.IsSafeToSend = true
		return nil
	}

	out, err = p.runStage(ctx, p.safety, in, result)
	if err != nil {
		return err
	}
	result.SafetyReport = out.SafetyReport
	if out.SafetyReport != nil {
		result.IsSafeToSend = out.SafetyReport.IsSafeToSend
	}

	return nil
}

// runStage invokes one stage, converts panics into stage errors, and
// always moves the stage's audit records onto the result trail.
func (p *Pipeline) runStage(ctx context.Context, stage ports.Stage, in *ports.StageInput, result *domain.PipelineResult) (out *ports.StageOutput, err error) {
	defer func() {
		result.AuditTrail = append(result.AuditTrail, stage.AuditLog()...)
		stage.ClearAuditLog()
		if r := recover(); r != nil {
			out, err = nil, &domain.StageError{Stage: stage.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = stage.Process(ctx, in)
	if err != nil {
		return nil, &domain.StageError{Stage: stage.Name(), Err: err}
	}
	return out, nil
}

// ExecuteBatch runs the pipeline once per context, strictly sequentially
// in input order. A failing customer yields a failed result without
// aborting the rest of the batch.
func (p *Pipeline) ExecuteBatch(ctx context.Context, custs []*domain.CustomerContext, opts ExecuteOptions) []*domain.PipelineResult {
	results := make([]*domain.PipelineResult, 0, len(custs))
	for _, cust := range custs {
		results = append(results, p.Execute(ctx, cust, opts))
	}
	return results
}

// Stats aggregates the execution history. An empty history yields zeroed
// values rather than dividing by zero.
func (p *Pipeline) Stats() domain.PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := domain.PipelineStats{TotalExecutions: len(p.history)}
	if len(p.history) == 0 {
		return stats
	}

	var successes, safe int
	var totalTime float64
	for _, r := range p.history {
		if r.IsSuccess {
			successes++
		}
		if r.IsSafeToSend {
			safe++
		}
		totalTime += r.ExecutionTimeMS
	}

	total := float64(len(p.history))
	stats.SuccessRate = float64(successes) / total
	stats.SafeToSendRate = float64(safe) / total
	stats.AverageExecutionTimeMS = totalTime / total
	return stats
}

// AuditTrail returns the merged audit trail of one past execution, or an
// empty slice when the pipeline id is unknown.
func (p *Pipeline) AuditTrail(pipelineID string) []domain.AuditRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.history {
		if r.PipelineID == pipelineID {
			out := make([]domain.AuditRecord, len(r.AuditTrail))
			copy(out, r.AuditTrail)
			return out
		}
	}
	return []domain.AuditRecord{}
}

// ExecutionHistory returns a copy of the result history in execution
// order. History grows without bound; long-running deployments should
// periodically call ClearExecutionHistory or persist results elsewhere.
func (p *Pipeline) ExecutionHistory() []*domain.PipelineResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*domain.PipelineResult, len(p.history))
	copy(out, p.history)
	return out
}

// ClearExecutionHistory discards all recorded results.
func (p *Pipeline) ClearExecutionHistory() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}
