package llmbackend

import (
	"context"
	"fmt"
	"time"
)

// TestModeBackend returns deterministic responses for offline testing.
// Its responses still carry execution="real" (the marker contract is not
// a test-mode exemption) and additionally set TestMode=true so callers
// can filter them out of production metrics/evidence if they choose to.
type TestModeBackend struct {
	model string
}

// NewTestModeBackend builds an offline backend. model defaults to
// "test-mode" when empty.
func NewTestModeBackend(model string) *TestModeBackend {
	if model == "" {
		model = "test-mode"
	}
	return &TestModeBackend{model: model}
}

func (t *TestModeBackend) Name() string { return "testmode:" + t.model }
func (t *TestModeBackend) Close() error { return nil }

func (t *TestModeBackend) Query(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = t.model
	}
	content := fmt.Sprintf("[test-mode response for task %s] %s", TaskFrom(ctx), req.Prompt)
	return Response{
		Content:   content,
		Execution: "real",
		Model:     model,
		Timestamp: time.Now().UTC(),
		Metadata:  req.Metadata,
		TestMode:  true,
	}, nil
}
