// Package retry provides backoff schedulers and a simple retry loop for the
// connector. Schedulers compute the delay sequence between delivery attempts;
// the Do loop covers generic startup-style retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultExponentialBase is the first delay of the exponential scheduler.
const DefaultExponentialBase = 500 * time.Millisecond

// Scheduler computes the delay before a retry attempt and enforces the
// maximum total retry duration measured from the first attempt.
type Scheduler interface {
	// NextDelay returns the delay to wait before retry attempt. Attempt
	// numbering starts at 0 for the first retry. Pure function of the
	// attempt index and the scheduler's parameters.
	NextDelay(attempt int) time.Duration

	// Exceeded reports whether the elapsed time since the first attempt has
	// passed the maximum total retry duration.
	Exceeded(elapsed time.Duration) bool
}

// Fixed waits a constant interval between attempts.
type Fixed struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

// NextDelay returns the constant interval for every attempt.
func (f Fixed) NextDelay(int) time.Duration {
	return f.Interval
}

// Exceeded reports whether elapsed has passed the maximum retry duration.
func (f Fixed) Exceeded(elapsed time.Duration) bool {
	return f.MaxDuration > 0 && elapsed >= f.MaxDuration
}

// Exponential doubles the delay each attempt starting from Base, optionally
// capped at Max.
type Exponential struct {
	Base        time.Duration
	Max         time.Duration
	MaxDuration time.Duration
}

// NextDelay returns Base * 2^attempt, capped at Max when Max is set.
func (e Exponential) NextDelay(attempt int) time.Duration {
	base := e.Base
	if base <= 0 {
		base = DefaultExponentialBase
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if e.Max > 0 && delay >= e.Max {
			return e.Max
		}
		// Guard against overflow on absurd attempt counts
		if delay <= 0 {
			return e.Max
		}
	}
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

// Exceeded reports whether elapsed has passed the maximum retry duration.
func (e Exponential) Exceeded(elapsed time.Duration) bool {
	return e.MaxDuration > 0 && elapsed >= e.MaxDuration
}

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration for the Do loop
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (0 = run once)
	InitialDelay time.Duration // Initial delay between attempts
	MaxDelay     time.Duration // Maximum delay between attempts
	Multiplier   float64       // Backoff multiplier (typically 2.0)
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.InitialDelay < 0 || cfg.MaxDelay < 0 {
		return errors.New("retry: delays cannot be negative")
	}
	if cfg.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1 // At least try once
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}

		nextDelay := float64(delay) * cfg.Multiplier
		if nextDelay > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(nextDelay)
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Quick returns a config for fast retries (useful during startup)
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
	}
}
