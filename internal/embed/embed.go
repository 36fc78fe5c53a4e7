// Package embed maps chunk text to vectors through an embedding provider.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder turns a batch of texts into one vector per text, in order.
// Vectors of one model configuration share a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Close() error
}

// ErrDimensionMismatch is returned when a batch's vectors disagree with the
// dimension fixed by the first batch of a run.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// RetryableError indicates a transient provider failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Options selects and configures a provider.
type Options struct {
	Provider      string // openai, gemini or hash
	Model         string
	BaseURL       string
	APIKey        string
	Dimensions    int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// New builds the configured provider wrapped with retries.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch opts.Provider {
	case "", "openai":
		e = NewOpenAI(opts)
	case "gemini":
		e, err = NewGemini(ctx, opts)
	case "hash":
		e = NewHash(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embed provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(e, opts.RetryAttempts, opts.RetryDelay), nil
}

// One embeds a single text.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
