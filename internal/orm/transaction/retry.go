package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxRetries is the default number of publish attempts
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrPermanent marks a publish failure that must not be retried
var ErrPermanent = errors.New("permanent failure")

// RetryConfig configures retry behavior for publishing change records
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// Permanent wraps err so that it is not retried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsRetryableError reports whether a publish failure may succeed on retry
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrPermanent) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// do runs fn until it succeeds, fails permanently or attempts run out.
// Backoff doubles after every attempt.
func (c *RetryConfig) do(ctx context.Context, fn func() error) error {
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("publish cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		backoff := c.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
