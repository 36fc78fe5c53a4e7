package embed

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retrying retries RetryableError failures of the wrapped Embedder.
type Retrying struct {
	Embedder
	attempts uint
	delay    time.Duration
}

// WithRetry wraps e so that each batch is tried up to attempts times. One
// attempt or fewer returns e unchanged.
func WithRetry(e Embedder, attempts int, delay time.Duration) Embedder {
	if attempts <= 1 {
		return e
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Retrying{Embedder: e, attempts: uint(attempts), delay: delay}
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := retry.Do(
		func() error {
			var err error
			out, err = r.Embedder.Embed(ctx, texts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
	return out, err
}
