// Package llmbackend implements the LLM backend adapter: a single Query
// call, the execution-marker contract, and decorators (rate limiting,
// logging) composed as middleware over the base adapter.
package llmbackend

import (
	"context"
	"fmt"
	"time"
)

// Request is one call to the backend.
type Request struct {
	Model     string
	Prompt    string
	SessionID string
	Metadata  map[string]any
}

// Response is the backend's result. A successful call always carries
// Execution == "real"; the adapter never synthesizes any other value.
type Response struct {
	Content   string
	Execution string
	Model     string
	Timestamp time.Time
	Metadata  map[string]any
	TestMode  bool
}

// LLMBackend is the single capability a worker depends on.
type LLMBackend interface {
	Query(ctx context.Context, req Request) (Response, error)
	Name() string
	Close() error
}

// ConfigurationError marks a failure discovered at construction time
// (e.g. a missing API key), not at first call.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llmbackend: configuration error: %s", e.Reason)
}

// BackendError wraps a failure returned by the underlying provider. The
// adapter never falls back to a synthesized response on this path.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return "llmbackend: " + e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }

// Config configures a production backend construction.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Middleware decorates an LLMBackend with a cross-cutting concern.
type Middleware func(LLMBackend) LLMBackend

// Wrap applies middlewares in order, innermost first, so the first
// middleware listed is the outermost decorator seen by callers.
func Wrap(base LLMBackend, mws ...Middleware) LLMBackend {
	out := base
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}
