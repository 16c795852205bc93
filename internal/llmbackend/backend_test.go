package llmbackend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestModeBackendAlwaysReal(t *testing.T) {
	b := NewTestModeBackend("")
	resp, err := b.Query(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "real", resp.Execution)
	assert.True(t, resp.TestMode)
	assert.Contains(t, resp.Content, "hello")
}

func TestWithTaskRoundTrip(t *testing.T) {
	ctx := WithTask(context.Background(), "task-123")
	assert.Equal(t, "task-123", TaskFrom(ctx))
	assert.Equal(t, "unknown", TaskFrom(context.Background()))
}

func TestRateLimitDelaysButDoesNotFail(t *testing.T) {
	backend := Wrap(NewTestModeBackend("rl"), RateLimit(1000, 5))
	defer backend.Close()

	for i := 0; i < 3; i++ {
		resp, err := backend.Query(context.Background(), Request{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "real", resp.Execution)
	}
}

func TestRateLimitHonorsContextCancellation(t *testing.T) {
	// a burst of zero is raised to one prefilled token and the refill
	// period is hours long; once that token is drained the limiter must
	// wait, so a short context deadline makes Query return the context
	// error, not hang or retry.
	backend := Wrap(NewTestModeBackend("rl"), RateLimit(0.0001, 0))
	// Drain the single prefilled token so the next Query call blocks.
	_, _ = backend.Query(context.Background(), Request{Prompt: "drain"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := backend.Query(ctx, Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestWrapOrdersMiddlewareOutermostFirst(t *testing.T) {
	backend := Wrap(NewTestModeBackend("order"), WithLogging(nil), RateLimit(1000, 5))
	assert.IsType(t, &logging{}, backend)
	resp, err := backend.Query(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "real", resp.Execution)
}

func TestConfigurationErrorOnMissingAPIKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), Config{Model: "gemini-2.5-flash"})
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
