// Package pipeline wires the personalization stages into an ordered
// execution engine.
//
// A pipeline run threads one CustomerContext through six stages:
// segmentation, signal scoring, experiment assignment, content retrieval,
// message composition, and safety checking. Each stage emits audit records
// that the pipeline collects into a per-run trail, whether the stage
// succeeds or fails. A stage failure or panic stops the run but still
// produces a well-formed result holding the partial trail.
//
// The pipeline serializes executions with a single lock, so one Pipeline
// may be shared by concurrent HTTP handlers.
package pipeline
