package llmbackend

import (
	"context"
	"time"
)

// rpsLimiter is a token-bucket limiter for outbound Query calls. It only
// ever delays dispatch; it never retries a failed Query.
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
				}
			case <-l.stopCh:
				return
			}
		}
	}()
	return l
}

func (l *rpsLimiter) acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

func (l *rpsLimiter) stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}

type rateLimited struct {
	next LLMBackend
	rl   *rpsLimiter
}

// RateLimit decorates base so Query blocks until a token bucket permit is
// available, at rps requests/sec with the given burst capacity. rps <= 0
// disables limiting (the decorator becomes a pass-through).
func RateLimit(rps float64, burst int) Middleware {
	return func(next LLMBackend) LLMBackend {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

func (r *rateLimited) Name() string { return r.next.Name() }
func (r *rateLimited) Close() error {
	r.rl.stop()
	return r.next.Close()
}

func (r *rateLimited) Query(ctx context.Context, req Request) (Response, error) {
	if err := r.rl.acquire(ctx); err != nil {
		return Response{}, err
	}
	return r.next.Query(ctx, req)
}
