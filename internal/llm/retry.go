package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type retrying struct {
	next Completer
	cfg  RetryConfig
}

// WithRetry retries transient failures with exponential backoff. Rate limits,
// 5xx answers and transport errors are retried; other provider answers and
// context cancellation are not.
func WithRetry(next Completer, cfg RetryConfig) Completer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return retrying{next: next, cfg: cfg}
}

func (r retrying) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval
	bo.MaxInterval = r.cfg.MaxInterval

	return backoff.Retry(ctx, func() (Completion, error) {
		completion, err := r.next.Complete(ctx, prompt)
		if err != nil && !retryable(ctx, err) {
			return Completion{}, backoff.Permanent(err)
		}
		return completion, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(r.cfg.MaxAttempts)))
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
