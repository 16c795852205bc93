package llmbackend

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// GeminiBackend is the production LLMBackend, a thin wrapper around the
// official genai client: the adapter only makes the API call,
// cross-cutting concerns (rate limiting, logging) are applied via
// Middleware.
type GeminiBackend struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiBackend constructs a production backend. A missing API key
// fails eagerly here, at construction time, not at first call.
func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Reason: "LLM_API_KEY is required"}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("genai client: %v", err)}
	}
	return &GeminiBackend{cli: cli, model: model, timeout: timeout}, nil
}

func (g *GeminiBackend) Name() string { return "gemini:" + g.model }
func (g *GeminiBackend) Close() error { return nil }

// Query issues a single generation call. On success Execution is always
// "real"; on failure the genai error is wrapped in BackendError and
// returned verbatim; no fallback response is synthesized.
func (g *GeminiBackend) Query(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = g.model
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		nil,
	)
	if err != nil {
		return Response{}, &BackendError{Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, &BackendError{Err: fmt.Errorf("empty response from model %s", model)}
	}

	return Response{
		Content:   resp.Candidates[0].Content.Parts[0].Text,
		Execution: "real",
		Model:     model,
		Timestamp: time.Now().UTC(),
		Metadata:  req.Metadata,
	}, nil
}
