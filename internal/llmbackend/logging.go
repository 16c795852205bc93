package llmbackend

import (
	"context"
	"log"
)

// WithLogging decorates the backend with request/error logging. A nil
// logger uses log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next LLMBackend) LLMBackend {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next LLMBackend
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Query(ctx context.Context, req Request) (Response, error) {
	l.log.Printf("llm request (task=%s model=%s): %d bytes", TaskFrom(ctx), req.Model, len(req.Prompt))
	resp, err := l.next.Query(ctx, req)
	if err != nil {
		l.log.Printf("llm error (task=%s): %v", TaskFrom(ctx), err)
	}
	return resp, err
}
