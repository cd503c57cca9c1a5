package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls retry behaviour for transient generator errors.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns sensible defaults for interactive tutoring.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryGenerator is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryGenerator struct {
	inner  Generator
	config RetryConfig
}

// WithRetry wraps a Generator with retry logic.
func WithRetry(g Generator, cfg RetryConfig) Generator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	return &RetryGenerator{inner: g, config: cfg}
}

func (r *RetryGenerator) Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	var lastErr error

	for attempt := range r.config.MaxAttempts {
		text, err := r.inner.Generate(ctx, prompt, attachments)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == r.config.MaxAttempts-1 {
			break
		}
		if !r.wait(ctx, attempt, err) {
			return "", ctx.Err()
		}
	}

	return "", lastErr
}

// GenerateStream retries only while nothing has been delivered to the
// caller. Once the first chunk is out, errors are forwarded as they are.
func (r *RetryGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for attempt := range r.config.MaxAttempts {
			chunks, errs := r.inner.GenerateStream(ctx, prompt, attachments)

			delivered := false
			for c := range chunks {
				delivered = true
				if !send(ctx, out, c) {
					drain(chunks, errs)
					errCh <- ctx.Err()
					return
				}
			}
			err := <-errs
			if err == nil {
				return
			}

			if delivered || !shouldRetry(err) || attempt == r.config.MaxAttempts-1 {
				errCh <- err
				return
			}
			if !r.wait(ctx, attempt, err) {
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

func (r *RetryGenerator) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryGenerator) wait(ctx context.Context, attempt int, err error) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.backoff(attempt, err)):
		return true
	}
}

// backoff computes the wait duration for the given attempt.
func (r *RetryGenerator) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxWait > 0 && wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rejected *ErrRequestRejected
	if errors.As(err, &rejected) {
		return false
	}
	// Empty replies tend to repeat; the caller falls back instead.
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	return true
}

// drain consumes a stream the caller is abandoning so its producer can exit.
func drain(chunks <-chan string, errs <-chan error) {
	go func() {
		for range chunks {
		}
		for range errs {
		}
	}()
}
