package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloneforge/internal/artifact"
	"cloneforge/internal/evidence"
	"cloneforge/internal/llmbackend"
	"cloneforge/internal/worker"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	recorder := evidence.NewRecorder(nil)
	identity := worker.NewIdentity(worker.RoleCoordinator, "", 0)
	w := worker.New(identity, llmbackend.NewTestModeBackend("omega"), store, recorder)
	return New(w, NewRegistry(), recorder)
}

func TestDelegateFailsWithUnknownCloneError(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Delegate(context.Background(), DelegateRequest{TargetClone: "theta", Prompt: "hi"})
	require.Error(t, err)
	assert.Regexp(t, "(?i)unknown clone", err.Error())

	var unknownErr *worker.UnknownCloneError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestDelegateForwardsToPeerTask(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task", r.URL.Path)
		var req worker.TaskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Prompt)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(worker.TaskResponse{Success: true, Result: "ok", TaskID: req.SessionID})
	}))
	defer peer.Close()

	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleAnalyzer, peer.URL)

	resp, err := c.Delegate(context.Background(), DelegateRequest{TargetClone: worker.RoleAnalyzer, Prompt: "hello"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Result)
}

func TestOrchestrateRejectsLowQualityWithoutDownstreamCall(t *testing.T) {
	called := false
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleAnalyzer, peer.URL)

	_, err := c.Orchestrate(context.Background(), OrchestrateRequest{
		Objective:     "x",
		TargetClone:   worker.RoleAnalyzer,
		EssentialData: map[string]any{},
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestOrchestrateSucceedsAndRecordsEvidenceAfterDownstream(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(worker.TaskResponse{Success: true, Result: "designed", TaskID: "sess-1"})
	}))
	defer peer.Close()

	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleArchitect, peer.URL)

	resp, err := c.Orchestrate(context.Background(), OrchestrateRequest{
		Objective:     "design the new billing subsystem architecture",
		TargetClone:   worker.RoleArchitect,
		EssentialData: map[string]any{"repo": "billing"},
		SessionID:     "sess-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "designed", resp.Result.Result)

	records := c.Evidence.Records("sess-1")
	require.Len(t, records, 1)
	assert.Equal(t, "orchestration", records[0].Operation)
}

func TestOrchestrateRecordsWarningInMidQualityBand(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(worker.TaskResponse{Success: true, Result: "ok", TaskID: "warn-1"})
	}))
	defer peer.Close()

	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleTester, peer.URL)

	resp, err := c.Orchestrate(context.Background(), OrchestrateRequest{
		Objective:     "improve things",
		TargetClone:   worker.RoleTester,
		EssentialData: map[string]any{"key": nil},
		SessionID:     "warn-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	ops := make([]string, 0)
	for _, rec := range c.Evidence.Records("warn-1") {
		ops = append(ops, rec.Operation)
	}
	assert.Contains(t, ops, "context_quality_warning")
	assert.Contains(t, ops, "orchestration")
}

func TestOrchestrateZeroesUtilizationWhenManifestCarriesInlineContent(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(worker.TaskResponse{Success: true, Result: "ok"})
	}))
	defer peer.Close()

	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleAnalyzer, peer.URL)

	resp, err := c.Orchestrate(context.Background(), OrchestrateRequest{
		Objective:     "analyze the request parser module for unsafe input handling",
		TargetClone:   worker.RoleAnalyzer,
		EssentialData: map[string]any{"repo": "cloneforge"},
		ArtifactManifests: []any{
			map[string]any{
				"artifactId": "a1",
				"checksum":   "deadbeef",
				"content":    "const x = 1;",
			},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.ContextQuality.ArtifactUtilization)
}

func TestNetworkStatusReportsUnreachablePeer(t *testing.T) {
	c := newTestCoordinator(t)
	c.Registry.RegisterCloneAt(worker.RoleAnalyzer, "http://127.0.0.1:1")

	status := c.NetworkStatus(context.Background())
	clone, ok := status.Clones[worker.RoleAnalyzer]
	require.True(t, ok)
	assert.False(t, clone.Reachable)
	assert.NotEmpty(t, clone.Error)
}
