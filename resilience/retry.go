// Package resilience protects backend calls against transient
// failures with retries and a circuit breaker. A till keeps serving
// customers through flaky cafe wifi; these helpers absorb the blips.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietpos/terminal/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool

	// Classifier decides whether an error is worth retrying. Nil
	// retries everything except auth and validation failures.
	Classifier func(error) bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// FromConfig builds a RetryConfig from the terminal configuration
func FromConfig(cfg core.RetryConfig) *RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		rc.InitialDelay = cfg.InitialDelay.Std()
	}
	if cfg.MaxDelay > 0 {
		rc.MaxDelay = cfg.MaxDelay.Std()
	}
	if cfg.BackoffFactor > 0 {
		rc.BackoffFactor = cfg.BackoffFactor
	}
	return rc
}

// defaultClassifier retries network-ish failures but never auth or
// validation errors, which repeat identically.
func defaultClassifier(err error) bool {
	if core.IsAuthError(err) || core.IsConfigurationError(err) {
		return false
	}
	if errors.Is(err, core.ErrCircuitBreakerOpen) {
		return true
	}
	return core.IsRetryable(err)
}

// Retry executes fn with exponential backoff until it succeeds, the
// attempts run out, the error is classified permanent, or the context
// is cancelled.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	classifier := config.Classifier
	if classifier == nil {
		classifier = defaultClassifier
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !classifier(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		// Jitter desynchronizes terminals retrying against the same backend
		if config.JitterEnabled {
			jitter := time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
			delay += jitter
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithCircuitBreaker combines retry logic with circuit breaker
// protection. Rejections from an open circuit count as attempts.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
