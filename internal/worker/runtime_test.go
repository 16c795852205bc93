package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloneforge/internal/artifact"
	"cloneforge/internal/evidence"
	"cloneforge/internal/llmbackend"
)

func newTestWorker(t *testing.T, role Role) *Worker {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	recorder := evidence.NewRecorder(nil)
	identity := NewIdentity(role, "test-specialization", 0)
	return New(identity, llmbackend.NewTestModeBackend("test"), store, recorder)
}

func TestExecuteTaskSucceedsAndUpdatesMetrics(t *testing.T) {
	w := newTestWorker(t, RoleAnalyzer)

	resp, err := w.ExecuteTask(context.Background(), TaskRequest{Prompt: "analyze this code", SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	snap := w.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TasksProcessed)
	assert.Equal(t, int64(0), snap.Errors)
	assert.Equal(t, float64(100), snap.SuccessRate)

	records := w.Evidence.Records("s1")
	require.Len(t, records, 1)
	assert.Equal(t, "real", records[0].Execution)
	assert.Equal(t, "task_execution", records[0].Operation)
}

func TestExecuteTaskRejectsEmptyPrompt(t *testing.T) {
	w := newTestWorker(t, RoleAnalyzer)

	before := w.Metrics.Snapshot().TasksProcessed
	_, err := w.ExecuteTask(context.Background(), TaskRequest{Prompt: "   ", SessionID: "s2"})
	require.Error(t, err)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	after := w.Metrics.Snapshot().TasksProcessed
	assert.Equal(t, before, after)
}

func TestHealthSuccessRateIsHundredWithNoTasks(t *testing.T) {
	w := newTestWorker(t, RoleArchitect)
	health := w.Health()
	assert.Equal(t, float64(100), health.Metrics.SuccessRate)
	assert.Equal(t, int64(0), health.Metrics.TasksProcessed)
}

func TestRunSpecializationStoresArtifact(t *testing.T) {
	w := newTestWorker(t, RoleTester)

	result, err := w.RunSpecialization(context.Background(), SpecializationInput{
		Prompt:       "generate tests for this function",
		SessionID:    "s3",
		ArtifactType: artifact.TypeTestSuite,
		Metadata:     map[string]any{"framework": "go test"},
	})
	require.NoError(t, err)
	assert.Equal(t, artifact.TypeTestSuite, result.Manifest.Type)
	assert.NotEmpty(t, result.Manifest.ArtifactID)

	stored, err := w.Artifact.Retrieve(context.Background(), result.Manifest.ArtifactID, artifact.RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, result.Task.Result, string(stored.Content))
}

func TestSystemPromptIncludesNoSimulationsLaw(t *testing.T) {
	for _, role := range []Role{RoleAnalyzer, RoleArchitect, RoleTester, RoleCommunicator, RoleCoordinator} {
		identity := NewIdentity(role, "", 0)
		assert.Contains(t, identity.SystemPrompt, "NO SIMULATIONS LAW")
	}
}

func TestNewIdentityDefaultsPort(t *testing.T) {
	identity := NewIdentity(RoleAnalyzer, "x", 0)
	assert.Equal(t, 3001, identity.Port)
}

func TestStatusForMapsErrorTaxonomy(t *testing.T) {
	assert.Equal(t, 400, statusFor(&ValidationError{}))
	assert.Equal(t, 404, statusFor(artifact.ErrNotFound))
	assert.Equal(t, 500, statusFor(artifact.ErrChecksumMismatch))
	assert.Equal(t, 400, statusFor(&UnknownCloneError{Role: "theta"}))
}
