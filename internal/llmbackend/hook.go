package llmbackend

import "context"

type ctxKeyTask struct{}

// WithTask attaches a task/session correlation id to ctx, read back by
// the logging decorator and the test-mode backend.
func WithTask(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, ctxKeyTask{}, taskID)
}

// TaskFrom returns the task id stored in ctx, or "unknown" if absent.
func TaskFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyTask{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
