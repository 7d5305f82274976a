package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"conduit/internal/logging"
)

// Backoff strategies.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryConfig configures retry behavior. MaxAttempts counts every call,
// including the first.
type RetryConfig struct {
	MaxAttempts  int              `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay    time.Duration    `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay     time.Duration    `mapstructure:"max_delay" yaml:"max_delay"`
	JitterFactor float64          `mapstructure:"jitter_factor" yaml:"jitter_factor"`
	Backoff      string           `mapstructure:"backoff" yaml:"backoff"`
	RetryIf      func(error) bool `mapstructure:"-" yaml:"-"`
}

// DefaultRetryConfig mirrors the provider wrapper defaults: two attempts one
// second apart, retrying any failure.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffFixed,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// Retry executes fn until it succeeds or the attempts are used up.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	_, err := RetryWithResultAndLog(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}

// RetryWithResult executes a function that returns a result with retry logic.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil)
}

// RetryWithResultAndLog is RetryWithResult with an explicit logger. After the
// final attempt the last failure is returned unchanged.
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("retry")
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zeroValue T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return zeroValue, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Warn("Attempt %d/%d failed: %v", attempt+1, attempts, err)

		if config.RetryIf != nil && !config.RetryIf(err) {
			logger.Debug("Error is not retryable, stopping")
			return zeroValue, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := calculateBackoff(attempt, config)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
	return zeroValue, lastErr
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := config.BaseDelay
	if config.Backoff == BackoffExponential {
		delay = time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt)))
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
		if delay < 0 {
			delay = config.BaseDelay
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
	return delay
}
