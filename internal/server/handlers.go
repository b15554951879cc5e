package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/experiment"
	"github.com/pulsecraft/pulsecraft/internal/pipeline"
	"github.com/pulsecraft/pulsecraft/internal/storage"
)

// Handler exposes the pipeline, experiment, and run-replay operations over
// HTTP. It owns no state of its own.
type Handler struct {
	pipeline    *pipeline.Pipeline
	experiments *experiment.Orchestrator
	runs        storage.RunStore
	logger      *slog.Logger
}

func NewHandler(p *pipeline.Pipeline, orch *experiment.Orchestrator, runs storage.RunStore, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline:    p,
		experiments: orch,
		runs:        runs,
		logger:      logger,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/demo", func(r chi.Router) {
			r.Post("/run", h.handleRun)
			r.Post("/batch", h.handleBatch)
			r.Get("/replay/{pipelineID}", h.handleReplay)
			r.Get("/list", h.handleList)
		})

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/stats", h.handleStats)
			r.Get("/audit/{pipelineID}", h.handleAudit)
		})

		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", h.handleCreateExperiment)
			r.Get("/", h.handleListExperiments)

			r.Route("/{experimentID}", func(r chi.Router) {
				r.Get("/", h.handleGetExperiment)
				r.Post("/start", h.handleTransition(h.experiments.StartExperiment))
				r.Post("/pause", h.handleTransition(h.experiments.PauseExperiment))
				r.Post("/complete", h.handleTransition(h.experiments.CompleteExperiment))
				r.Get("/metrics", h.handleMetrics)
				r.Get("/uplift", h.handleUplift)
				r.Post("/conversions", h.handleConversion)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type customerPayload struct {
	CustomerID        string             `json:"customer_id"`
	Attributes        map[string]any     `json:"attributes"`
	BehavioralSignals map[string]float64 `json:"behavioral_signals"`
}

func (p customerPayload) toContext() *domain.CustomerContext {
	cust := domain.NewCustomerContext(p.CustomerID)
	for k, v := range p.Attributes {
		cust.Attributes[k] = v
	}
	for k, v := range p.BehavioralSignals {
		cust.BehavioralSignals[k] = v
	}
	return cust
}

type runRequest struct {
	customerPayload
	ExperimentID    string `json:"experiment_id"`
	SkipSafetyCheck bool   `json:"skip_safety_check"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	result := h.pipeline.Execute(r.Context(), req.toContext(), pipeline.ExecuteOptions{
		ExperimentID:    req.ExperimentID,
		SkipSafetyCheck: req.SkipSafetyCheck,
	})

	AddLogField(r.Context(), "pipeline_id", result.PipelineID)
	AddLogField(r.Context(), "customer_id", result.CustomerID)

	if err := h.runs.SaveRun(r.Context(), result); err != nil {
		// The execution already happened; losing the replay record is
		// not worth failing the request over.
		h.logger.Error("failed to persist run",
			slog.String("pipeline_id", result.PipelineID),
			slog.String("error", err.Error()))
	}

	respondJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Customers       []customerPayload `json:"customers"`
	ExperimentID    string            `json:"experiment_id"`
	SkipSafetyCheck bool              `json:"skip_safety_check"`
}

type batchResponse struct {
	Results []*domain.PipelineResult `json:"results"`
	Count   int                      `json:"count"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Customers) == 0 {
		respondError(w, http.StatusBadRequest, "customers is required")
		return
	}
	for _, c := range req.Customers {
		if c.CustomerID == "" {
			respondError(w, http.StatusBadRequest, "every customer needs a customer_id")
			return
		}
	}

	contexts := make([]*domain.CustomerContext, len(req.Customers))
	for i, c := range req.Customers {
		contexts[i] = c.toContext()
	}

	results := h.pipeline.ExecuteBatch(r.Context(), contexts, pipeline.ExecuteOptions{
		ExperimentID:    req.ExperimentID,
		SkipSafetyCheck: req.SkipSafetyCheck,
	})

	for _, result := range results {
		if err := h.runs.SaveRun(r.Context(), result); err != nil {
			h.logger.Error("failed to persist run",
				slog.String("pipeline_id", result.PipelineID),
				slog.String("error", err.Error()))
		}
	}

	respondJSON(w, http.StatusOK, batchResponse{Results: results, Count: len(results)})
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineID")

	result, err := h.runs.GetRun(r.Context(), pipelineID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		AddError(r.Context(), err)
		respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type listResponse struct {
	Runs  []domain.RunSummary `json:"runs"`
	Count int                 `json:"count"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context())
	if err != nil {
		AddError(r.Context(), err)
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Runs: runs, Count: len(runs)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.Stats())
}

type auditResponse struct {
	PipelineID string               `json:"pipeline_id"`
	AuditTrail []domain.AuditRecord `json:"audit_trail"`
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineID")
	respondJSON(w, http.StatusOK, auditResponse{
		PipelineID: pipelineID,
		AuditTrail: h.pipeline.AuditTrail(pipelineID),
	})
}

type createExperimentRequest struct {
	Name          string                     `json:"name"`
	Description   string                     `json:"description"`
	TargetSegment string                     `json:"target_segment"`
	Variants      []domain.ExperimentVariant `json:"variants"`
}

func (h *Handler) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exp, err := h.experiments.CreateExperiment(req.Name, req.Variants, req.TargetSegment, req.Description)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	AddLogField(r.Context(), "experiment_id", exp.ExperimentID)
	respondJSON(w, http.StatusCreated, exp)
}

type experimentsResponse struct {
	Experiments []*domain.Experiment `json:"experiments"`
	Count       int                  `json:"count"`
}

func (h *Handler) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	status := domain.ExperimentStatus(r.URL.Query().Get("status"))
	experiments := h.experiments.Experiments(status)
	respondJSON(w, http.StatusOK, experimentsResponse{Experiments: experiments, Count: len(experiments)})
}

func (h *Handler) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, ok := h.experiments.Experiment(chi.URLParam(r, "experimentID"))
	if !ok {
		respondError(w, http.StatusNotFound, "experiment not found")
		return
	}
	respondJSON(w, http.StatusOK, exp)
}

// handleTransition wraps one lifecycle transition. Transitions only fail
// for unknown ids, which map to 404.
func (h *Handler) handleTransition(transition func(string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		experimentID := chi.URLParam(r, "experimentID")

		if !transition(experimentID) {
			respondError(w, http.StatusNotFound, "experiment not found")
			return
		}

		exp, _ := h.experiments.Experiment(experimentID)
		respondJSON(w, http.StatusOK, exp)
	}
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	experimentID := chi.URLParam(r, "experimentID")
	if _, ok := h.experiments.Experiment(experimentID); !ok {
		respondError(w, http.StatusNotFound, "experiment not found")
		return
	}
	respondJSON(w, http.StatusOK, h.experiments.Metrics(experimentID))
}

func (h *Handler) handleUplift(w http.ResponseWriter, r *http.Request) {
	experimentID := chi.URLParam(r, "experimentID")
	control := r.URL.Query().Get("control")
	if control == "" {
		respondError(w, http.StatusBadRequest, "control query parameter is required")
		return
	}
	if _, ok := h.experiments.Experiment(experimentID); !ok {
		respondError(w, http.StatusNotFound, "experiment not found")
		return
	}
	respondJSON(w, http.StatusOK, h.experiments.CalculateUplift(experimentID, control))
}

type conversionRequest struct {
	CustomerID string  `json:"customer_id"`
	Value      float64 `json:"value"`
}

func (h *Handler) handleConversion(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	experimentID := chi.URLParam(r, "experimentID")
	if !h.experiments.RecordConversion(req.CustomerID, experimentID, req.Value) {
		respondError(w, http.StatusNotFound, "no assignment for customer in experiment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
