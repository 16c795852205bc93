package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloneforge/internal/artifact"
	"cloneforge/internal/evidence"
	"cloneforge/internal/quality"
	"cloneforge/internal/worker"
)

// Coordinator is Omega: itself a Worker (it can be /task'ed like any
// other clone) plus the registry and the three orchestration endpoints.
type Coordinator struct {
	Worker   *worker.Worker
	Registry *Registry
	Client   *PeerClient
	Evidence *evidence.Recorder
}

// New builds a Coordinator wrapping w, whose Identity.Role must be
// worker.RoleCoordinator.
func New(w *worker.Worker, registry *Registry, recorder *evidence.Recorder) *Coordinator {
	return &Coordinator{Worker: w, Registry: registry, Client: NewPeerClient(), Evidence: recorder}
}

// NetworkStatus is the /network-status response body.
type NetworkStatus struct {
	Coordinator worker.HealthReport         `json:"coordinator"`
	Clones      map[worker.Role]CloneStatus `json:"clones"`
}

// CloneStatus is one peer's probe result.
type CloneStatus struct {
	Reachable bool   `json:"reachable"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NetworkStatus iterates the registry, probing each peer's /health with a
// short timeout.
func (c *Coordinator) NetworkStatus(ctx context.Context) NetworkStatus {
	status := NetworkStatus{
		Coordinator: c.Worker.Health(),
		Clones:      map[worker.Role]CloneStatus{},
	}
	for _, role := range c.Registry.Roles() {
		baseURL, _ := c.Registry.Lookup(role)
		health, err := c.Client.Health(ctx, baseURL)
		if err != nil {
			status.Clones[role] = CloneStatus{Reachable: false, Error: err.Error()}
			continue
		}
		s, _ := health["status"].(string)
		status.Clones[role] = CloneStatus{Reachable: true, Status: s}
	}
	return status
}

// DelegateRequest is the /delegate input.
type DelegateRequest struct {
	TargetClone worker.Role    `json:"targetClone"`
	Prompt      string         `json:"prompt"`
	Context     map[string]any `json:"context,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
}

// Delegate forwards req verbatim to <registry[targetClone]>/task, failing
// with UnknownCloneError if targetClone is not registered.
func (c *Coordinator) Delegate(ctx context.Context, req DelegateRequest) (worker.TaskResponse, error) {
	baseURL, ok := c.Registry.Lookup(req.TargetClone)
	if !ok {
		return worker.TaskResponse{}, &worker.UnknownCloneError{Role: string(req.TargetClone)}
	}

	var resp worker.TaskResponse
	err := c.Client.PostJSON(ctx, baseURL, "/task", worker.TaskRequest{
		Prompt:    req.Prompt,
		Context:   req.Context,
		SessionID: req.SessionID,
	}, &resp)
	if err != nil {
		return worker.TaskResponse{}, fmt.Errorf("coordinator: delegate to %s: %w", req.TargetClone, err)
	}
	return resp, nil
}

// OrchestrateRequest is the /orchestrate input.
type OrchestrateRequest struct {
	Objective         string         `json:"objective"`
	TargetClone       worker.Role    `json:"targetClone"`
	ArtifactManifests []any          `json:"artifactManifests,omitempty"`
	EssentialData     map[string]any `json:"essentialData,omitempty"`
	Constraints       map[string]any `json:"constraints,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
}

// OrchestrationInfo is the orchestration sub-object of the response.
type OrchestrationInfo struct {
	TaskID     string    `json:"taskId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	DurationMs int64     `json:"durationMs"`
}

// OrchestrateResponse is the /orchestrate response body.
type OrchestrateResponse struct {
	Success        bool                `json:"success"`
	Result         worker.TaskResponse `json:"result,omitempty"`
	ContextQuality quality.Score       `json:"contextQuality"`
	Orchestration  OrchestrationInfo   `json:"orchestration"`
	Error          string              `json:"error,omitempty"`
}

// Orchestrate scores the envelope, rejecting (without contacting the
// target) below the quality gate; translates it to a task request;
// delegates; records an "orchestration" evidence event strictly after the
// downstream response is received; and returns the aggregated response.
func (c *Coordinator) Orchestrate(ctx context.Context, req OrchestrateRequest) (OrchestrateResponse, error) {
	manifests, inline, err := manifestsFromAny(req.ArtifactManifests)
	if err != nil {
		return OrchestrateResponse{}, err
	}

	envelope, err := quality.ConstructContextPackage(quality.PackageInput{
		Objective:         req.Objective,
		TargetClone:       string(req.TargetClone),
		EssentialData:     req.EssentialData,
		Constraints:       req.Constraints,
		ArtifactManifests: manifests,
		InlineContent:     inline,
	})
	if err != nil {
		return OrchestrateResponse{}, err // quality gate reject or invalid input: no downstream call made
	}

	if envelope.Quality.Gate == quality.GateWarn {
		if rec, recErr := c.Evidence.Record(evidence.Record{
			Operation: "context_quality_warning",
			Execution: evidence.ExecutionReal,
			TaskID:    req.SessionID,
			Clone:     string(req.TargetClone),
			Extras:    map[string]any{"qualityScore": envelope.Quality.Overall},
		}); recErr == nil {
			_ = c.Evidence.WriteToAuditLog(rec)
		}
	}

	start := time.Now()
	downstream, delegateErr := c.Delegate(ctx, DelegateRequest{
		TargetClone: req.TargetClone,
		Prompt:      req.Objective,
		Context: map[string]any{
			"contextId":         envelope.ContextID,
			"objective":         envelope.Objective,
			"essentialData":     envelope.EssentialData,
			"constraints":       envelope.Constraints,
			"artifactManifests": envelope.ArtifactManifests,
		},
		SessionID: req.SessionID,
	})
	end := time.Now()

	// Record the orchestration event strictly after the downstream
	// response is received, so it reflects the actual outcome.
	sessionID := req.SessionID
	if delegateErr == nil {
		sessionID = downstream.TaskID
	}
	completed, recErr := c.Evidence.Record(evidenceRecordFor(req.TargetClone, envelope.Quality.Overall, sessionID, delegateErr))
	if recErr == nil {
		_ = c.Evidence.WriteToAuditLog(completed)
	}

	resp := OrchestrateResponse{
		ContextQuality: envelope.Quality,
		Orchestration: OrchestrationInfo{
			TaskID:     sessionID,
			StartTime:  start.UTC(),
			EndTime:    end.UTC(),
			DurationMs: end.Sub(start).Milliseconds(),
		},
	}
	if delegateErr != nil {
		resp.Success = false
		resp.Error = delegateErr.Error()
		return resp, nil
	}
	resp.Success = true
	resp.Result = downstream
	return resp, nil
}

// evidenceRecordFor builds the "orchestration" evidence event, carrying
// the target role and quality score plus the downstream sessionId.
func evidenceRecordFor(target worker.Role, qualityScore int, sessionID string, delegateErr error) evidence.Record {
	rec := evidence.Record{
		Operation: "orchestration",
		Execution: evidence.ExecutionReal,
		TaskID:    sessionID,
		Clone:     string(target),
		Extras:    map[string]any{"qualityScore": qualityScore},
	}
	if delegateErr != nil {
		rec.Execution = evidence.ExecutionFailed
		rec.Error = delegateErr.Error()
	}
	return rec
}

// manifestsFromAny re-decodes the loosely-typed JSON array from the
// /orchestrate request body into concrete artifact.Manifest values. It
// also reports whether any entry smuggles an inline content blob: the
// typed decode would silently drop such a field, so the raw entries are
// inspected before conversion and the finding is handed to the quality
// scorer, which zeroes artifact utilization for it.
func manifestsFromAny(raw []any) ([]artifact.Manifest, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	inline := false
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"content", "data", "bytes"} {
			if _, has := m[key]; has {
				inline = true
			}
		}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("coordinator: marshal artifactManifests: %w", err)
	}
	var manifests []artifact.Manifest
	if err := json.Unmarshal(encoded, &manifests); err != nil {
		return nil, false, fmt.Errorf("coordinator: decode artifactManifests: %w", err)
	}
	return manifests, inline, nil
}
