// Package retry runs an operation with bounded attempts and a backoff between them.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WaitFunc blocks for d or until ctx is done
type WaitFunc func(ctx context.Context, d time.Duration) error

// BackoffFunc returns the delay after the given failed attempt (1-based)
type BackoffFunc func(attempt int, err error) time.Duration

// Policy describes how an operation is retried
type Policy struct {
	// Name shows up in logs and in ExhaustedError
	Name        string
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable reports whether err deserves another attempt. nil retries everything.
	Retryable func(err error) bool
	Wait      WaitFunc
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Linear backs off base, 2*base, 3*base, ...
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Sleep waits for d, returning early with ctx.Err() on cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or runs out of attempts
func Do(ctx context.Context, p Policy, log *zap.Logger, fn func(ctx context.Context, attempt int) error) error {
	_, err := DoWithResult(ctx, p, log, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, p Policy, log *zap.Logger, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if log == nil {
		log = zap.NewNop()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	wait := p.Wait
	if wait == nil {
		wait = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Info("retry succeeded",
					zap.String("operation", p.Name),
					zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			log.Debug("error is not retryable",
				zap.String("operation", p.Name),
				zap.Error(err))
			return zero, err
		}

		log.Warn("attempt failed",
			zap.String("operation", p.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt, err)
		}
		if werr := wait(ctx, delay); werr != nil {
			return zero, fmt.Errorf("%s cancelled: %w", p.Name, werr)
		}
	}

	return zero, &ExhaustedError{Name: p.Name, Attempts: maxAttempts, Err: lastErr}
}
