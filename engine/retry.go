package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"Gin_postgres_redis_equipment_loans/lifecycle"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrInvalidBaseDelay    = errors.New("base delay must be positive")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
}

// RetryOption configures the conflict retry loop.
type RetryOption func(*retryConfig) error

func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the first backoff; later ones double it.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if delay <= 0 {
			return ErrInvalidBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

func WithJitterFactor(factor float64) RetryOption {
	return func(c *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

func (c retryConfig) backoff() retry.Backoff {
	b := retry.NewExponential(c.baseDelay)
	b = retry.WithJitterPercent(uint64(c.jitterFactor*100), b)
	return retry.WithMaxRetries(uint64(c.maxAttempts-1), b)
}

// retryOnConflict runs fn until it succeeds, fails with anything other than
// lifecycle.ErrConflict, or the attempts run out. Each failed attempt has
// already been rolled back by the store.
func retryOnConflict(ctx context.Context, cfg retryConfig, onRetry func(attempt int, err error), fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !errors.Is(err, lifecycle.ErrConflict) {
			return err
		}
		if onRetry != nil && attempt < cfg.maxAttempts {
			onRetry(attempt, err)
		}
		return retry.RetryableError(err)
	})
}
