// Package retry runs an operation again after transient failures, waiting
// an exponentially growing delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior. The zero value makes a single attempt.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// InitialBackoff is the delay before the first retry (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts (default: 10s).
	MaxBackoff time.Duration

	// Multiplier grows the delay after each retry (default: 2.0).
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction, 0 to 1.
	Jitter float64

	// IsRetryable decides whether a failure is retried.
	// If nil, DefaultIsRetryable is used.
	IsRetryable func(error) bool

	// OnRetry, if set, is called before waiting for the next attempt.
	// attempt is the 1-based number of the attempt that failed.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig returns three retries starting at 100ms.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Sentinel errors carried by RetryError.Err.
var (
	ErrNotRetryable    = errors.New("retry: error is not retryable")
	ErrMaxRetries      = errors.New("retry: max retries exceeded")
	ErrContextCanceled = errors.New("retry: context canceled")
)

// RetryableFunc is the operation being retried.
type RetryableFunc func(ctx context.Context) error

// Do calls fn until it succeeds, fails with an error cfg.IsRetryable
// rejects, runs out of retries, or ctx is done.
// Every failure is returned as a *RetryError wrapping fn's last error.
func Do(ctx context.Context, cfg Config, fn RetryableFunc) error {
	cfg = applyDefaults(cfg)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return &RetryError{Cause: err, Attempts: attempt - 1, Err: ErrContextCanceled}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !cfg.IsRetryable(err) {
			return &RetryError{Cause: err, Attempts: attempt, Err: ErrNotRetryable}
		}
		if attempt > cfg.MaxRetries {
			return &RetryError{Cause: err, Attempts: attempt, Err: ErrMaxRetries}
		}

		wait := Backoff(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return &RetryError{Cause: err, Attempts: attempt, Err: ErrContextCanceled}
		case <-timer.C:
		}
	}
}

// RetryError reports a failed Do.
type RetryError struct {
	// Cause is the last error returned by the operation.
	Cause error
	// Attempts is the number of times the operation ran.
	Attempts int
	// Err is ErrMaxRetries, ErrNotRetryable or ErrContextCanceled.
	Err error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Err, e.Attempts, e.Cause)
}

func (e *RetryError) Unwrap() error {
	return e.Cause
}

// Is matches both the reason sentinel and the cause chain.
func (e *RetryError) Is(target error) bool {
	return errors.Is(e.Err, target) || errors.Is(e.Cause, target)
}

// Backoff returns the delay after the given failed attempt (1-based).
func Backoff(cfg Config, attempt int) time.Duration {
	cfg = applyDefaults(cfg)
	if attempt < 1 {
		attempt = 1
	}

	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		spread := d * cfg.Jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	return time.Duration(d)
}

func applyDefaults(cfg Config) Config {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	cfg.Jitter = min(max(cfg.Jitter, 0), 1)
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	return cfg
}

// DefaultIsRetryable retries everything except context errors and errors
// marked with Permanent.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var p *permanentError
	return !errors.As(err, &p)
}

// Permanent marks err as not worth retrying under DefaultIsRetryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{cause: err}
}

type permanentError struct {
	cause error
}

func (e *permanentError) Error() string { return e.cause.Error() }
func (e *permanentError) Unwrap() error { return e.cause }
