package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloneforge/internal/artifact"
	"cloneforge/internal/evidence"
	"cloneforge/internal/integrity"
	"cloneforge/internal/llmbackend"
)

// TaskRequest is the generic executeTask input.
type TaskRequest struct {
	Prompt    string         `json:"prompt"`
	Context   map[string]any `json:"context,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

// TaskResponse is the generic executeTask output.
type TaskResponse struct {
	Success         bool   `json:"success"`
	Result          string `json:"result,omitempty"`
	Error           string `json:"error,omitempty"`
	TaskID          string `json:"taskId"`
	ExecutionTimeMs int64  `json:"executionTimeMs,omitempty"`
	Model           string `json:"model,omitempty"`
}

// Worker is the one concrete type every role runs as, parameterized by
// Identity; the coordinator is this same type with an extra capability
// set, not a subclass.
type Worker struct {
	Identity Identity
	LLM      llmbackend.LLMBackend
	Artifact artifact.Store
	Evidence *evidence.Recorder
	Metrics  *Metrics
}

// New builds a Worker ready to process tasks.
func New(identity Identity, llm llmbackend.LLMBackend, store artifact.Store, recorder *evidence.Recorder) *Worker {
	return &Worker{
		Identity: identity,
		LLM:      llm,
		Artifact: store,
		Evidence: recorder,
		Metrics:  NewMetrics(),
	}
}

// ExecuteTask runs the RECEIVED -> VALIDATED -> WAITING_LLM -> VERIFIED ->
// RESPONDED pipeline. A validation failure never increments tasksProcessed;
// every other failure path records exactly one execution="failed" evidence
// event and increments both tasksProcessed and errors.
func (w *Worker) ExecuteTask(ctx context.Context, req TaskRequest) (TaskResponse, error) {
	// RECEIVED -> VALIDATED
	result := integrity.VerifyRequest(integrity.Request{Prompt: req.Prompt})
	if err := validationErrorFrom(result); err != nil {
		return TaskResponse{}, err // FAILED_VALIDATE, not counted in tasksProcessed
	}

	effectivePrompt, err := w.effectivePrompt(req)
	if err != nil {
		return TaskResponse{}, err // FAILED_VALIDATE
	}

	// VALIDATED -> WAITING_LLM
	start := time.Now()
	resp, err := w.LLM.Query(ctx, llmbackend.Request{
		Model:     "",
		Prompt:    effectivePrompt,
		SessionID: req.SessionID,
	})
	elapsedMs := time.Since(start).Milliseconds()
	if err != nil {
		w.recordFailure(req, elapsedMs, err) // FAILED_LLM
		return TaskResponse{}, err
	}

	// WAITING_LLM -> VERIFIED
	if verr := integrity.VerifyRealExecution(integrity.RealExecutionResponse{Execution: resp.Execution}); verr != nil {
		violation := &SimulationViolationError{Cause: verr}
		w.recordFailure(req, elapsedMs, violation) // FAILED_VERIFY
		return TaskResponse{}, violation
	}

	checksumVerified := true
	completed, err := w.Evidence.Record(evidence.Record{
		Operation:        "task_execution",
		Execution:        evidence.ExecutionReal,
		TaskID:           req.SessionID,
		Clone:            string(w.Identity.Role),
		ExecutionTimeMs:  elapsedMs,
		Model:            resp.Model,
		ChecksumVerified: &checksumVerified,
		Extras: map[string]any{
			"promptLength":   len(effectivePrompt),
			"responseLength": len(resp.Content),
		},
	})
	if err != nil {
		return TaskResponse{}, &artifact.IOError{Err: err}
	}
	_ = w.Evidence.WriteToAuditLog(completed)

	// VERIFIED -> RESPONDED
	w.Metrics.recordSuccess(elapsedMs)

	return TaskResponse{
		Success:         true,
		Result:          resp.Content,
		TaskID:          req.SessionID,
		ExecutionTimeMs: elapsedMs,
		Model:           resp.Model,
	}, nil
}

// recordFailure is the shared tail of every post-validation failure path:
// record exactly one execution="failed" evidence event and increment
// errors.
func (w *Worker) recordFailure(req TaskRequest, elapsedMs int64, cause error) {
	w.Metrics.recordError()
	completed, err := w.Evidence.Record(evidence.Record{
		Operation:       "task_execution",
		Execution:       evidence.ExecutionFailed,
		TaskID:          req.SessionID,
		Clone:           string(w.Identity.Role),
		ExecutionTimeMs: elapsedMs,
		Error:           cause.Error(),
	})
	if err == nil {
		_ = w.Evidence.WriteToAuditLog(completed)
	}
}

// effectivePrompt prefixes the role's system prompt and appends the
// JSON-serialized context block.
func (w *Worker) effectivePrompt(req TaskRequest) (string, error) {
	var sb strings.Builder
	sb.WriteString(w.Identity.SystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(req.Prompt)
	if len(req.Context) > 0 {
		ctxBytes, err := json.Marshal(req.Context)
		if err != nil {
			return "", fmt.Errorf("worker: marshal context: %w", err)
		}
		sb.WriteString("\n\ncontext: ")
		sb.Write(ctxBytes)
	}
	return sb.String(), nil
}

// SpecializationInput carries a specialization endpoint's raw arguments
// through to the wrapped executeTask call and the artifact it produces.
type SpecializationInput struct {
	Prompt       string
	Context      map[string]any
	SessionID    string
	ArtifactType artifact.Type
	Metadata     map[string]any
}

// SpecializationResult is what a specialization endpoint returns.
type SpecializationResult struct {
	Task     TaskResponse
	Manifest artifact.Manifest
}

// RunSpecialization wraps ExecuteTask and stores the resulting text as a
// new artifact. The artifact write happens strictly after the task
// evidence event, so audit consumers filtering on task_execution always
// see the task record first.
func (w *Worker) RunSpecialization(ctx context.Context, in SpecializationInput) (SpecializationResult, error) {
	taskResp, err := w.ExecuteTask(ctx, TaskRequest{
		Prompt:    in.Prompt,
		Context:   in.Context,
		SessionID: in.SessionID,
	})
	if err != nil {
		return SpecializationResult{}, err
	}

	manifest, err := w.Artifact.StoreArtifact(ctx, in.ArtifactType, []byte(taskResp.Result), in.Metadata)
	if err != nil {
		return SpecializationResult{}, err
	}

	return SpecializationResult{Task: taskResp, Manifest: manifest}, nil
}

// HealthReport is the /health response body shape.
type HealthReport struct {
	Status         string         `json:"status"`
	Role           Role           `json:"role"`
	Specialization string         `json:"specialization"`
	Timestamp      time.Time      `json:"timestamp"`
	Integrity      IntegrityFlags `json:"integrity"`
	Metrics        HealthMetrics  `json:"metrics"`
}

// IntegrityFlags reports component liveness for the /health body.
type IntegrityFlags struct {
	IntegrityMonitorActive     bool `json:"integrityMonitorActive"`
	EvidenceCollectorActive    bool `json:"evidenceCollectorActive"`
	AutoGenConnected           bool `json:"autoGenConnected"`
	ArtifactManagerInitialized bool `json:"artifactManagerInitialized"`
}

// HealthMetrics is the metrics sub-object of the /health body.
type HealthMetrics struct {
	Uptime            float64 `json:"uptime"`
	TasksProcessed    int64   `json:"tasksProcessed"`
	AverageResponseMs float64 `json:"averageResponseMs"`
	Errors            int64   `json:"errors"`
	SuccessRate       float64 `json:"successRate"`
}

// Health builds the /health response.
func (w *Worker) Health() HealthReport {
	snap := w.Metrics.Snapshot()
	return HealthReport{
		Status:         "active",
		Role:           w.Identity.Role,
		Specialization: w.Identity.Specialization,
		Timestamp:      time.Now().UTC(),
		Integrity: IntegrityFlags{
			IntegrityMonitorActive:     true,
			EvidenceCollectorActive:    w.Evidence != nil,
			AutoGenConnected:           w.LLM != nil,
			ArtifactManagerInitialized: w.Artifact != nil && w.Artifact.IsInitialized(),
		},
		Metrics: HealthMetrics{
			Uptime:            snap.Uptime.Seconds(),
			TasksProcessed:    snap.TasksProcessed,
			AverageResponseMs: snap.AverageResponseMs,
			Errors:            snap.Errors,
			SuccessRate:       snap.SuccessRate,
		},
	}
}
