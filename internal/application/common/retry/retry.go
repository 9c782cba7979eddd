package retry

import (
	"bh/internal/application/common/slogger"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    2,
		InitialDelay:  250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// RetryableOperation represents an operation that can be retried.
type RetryableOperation func(ctx context.Context) error

// RetryableChecker is an interface for custom retry logic.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// RetryExecutor handles retry logic with exponential backoff.
type RetryExecutor struct {
	config           *RetryConfig
	retryableChecker RetryableChecker
}

// NewRetryExecutor creates a new retry executor with default retry behavior.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	return NewRetryExecutorWithChecker(config, nil)
}

// NewRetryExecutorWithChecker creates a new retry executor with custom retry behavior.
func NewRetryExecutorWithChecker(config *RetryConfig, checker RetryableChecker) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if checker == nil {
		checker = &DefaultRetryableChecker{}
	}
	return &RetryExecutor{
		config:           config,
		retryableChecker: checker,
	}
}

// Execute executes an operation with retry logic.
func (r *RetryExecutor) Execute(ctx context.Context, operation RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Field("attempt", attempt+1))
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil || !r.retryableChecker.IsRetryable(err) {
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
		))
	}

	if r.config.MaxRetries == 0 {
		return lastErr
	}
	slogger.ErrorWithError(ctx, lastErr, "Operation failed after retries", slogger.Field("max_retries", r.config.MaxRetries))
	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay calculates the delay for a given attempt using exponential backoff.
func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// up to ±25% of the delay
	if r.config.Jitter {
		delay += (rand.Float64()*2 - 1) * delay * 0.25 //nolint:gosec // jitter does not need crypto randomness
	}

	return time.Duration(delay)
}

// DefaultRetryableChecker retries common transient network failures.
type DefaultRetryableChecker struct{}

// IsRetryable checks if an error should be retried.
func (d *DefaultRetryableChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return containsAny(strings.ToLower(err.Error()), []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"temporary",
		"try again",
		"no route to host",
		"network is unreachable",
		"connection timed out",
	})
}

// containsAny checks if the string contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// WithRetryAndChecker executes a function with custom retry configuration and checker.
func WithRetryAndChecker(
	ctx context.Context,
	config *RetryConfig,
	checker RetryableChecker,
	operation RetryableOperation,
) error {
	return NewRetryExecutorWithChecker(config, checker).Execute(ctx, operation)
}
