// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// ErrorClass is the closed classification of a remote failure, computed once
// at the executor boundary.
type ErrorClass int

const (
	ErrClassOther ErrorClass = iota
	ErrClassSecondary
	ErrClassPrimaryExhausted
	ErrClassNotFound
)

// String returns a short name for logging.
func (c ErrorClass) String() string {
	switch c {
	case ErrClassSecondary:
		return "secondary_rate_limit"
	case ErrClassPrimaryExhausted:
		return "primary_rate_limit"
	case ErrClassNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// ClassifyError maps an error to its ErrorClass. Only *driven.APIError values
// (possibly wrapped) are ever classified as anything but ErrClassOther.
func ClassifyError(err error) ErrorClass {
	var apiErr *driven.APIError
	if !errors.As(err, &apiErr) {
		return ErrClassOther
	}

	limited := apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusTooManyRequests
	switch {
	case apiErr.Secondary:
		return ErrClassSecondary
	case limited && strings.Contains(strings.ToLower(apiErr.Message), "secondary rate limit"):
		return ErrClassSecondary
	case limited && apiErr.RateRemaining == 0:
		return ErrClassPrimaryExhausted
	case apiErr.StatusCode == http.StatusNotFound:
		return ErrClassNotFound
	default:
		return ErrClassOther
	}
}

// RetryPolicy bounds the executor. Backoff is deterministic; no jitter is added.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration // cap for secondary rate limit backoff
	FallbackDelay time.Duration // fixed wait for any other failure
	ResetMargin   time.Duration // added to the primary quota reset time
}

// DefaultRetryPolicy returns 6 retries starting at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    6,
		InitialDelay:  60 * time.Second,
		MaxDelay:      time.Hour,
		FallbackDelay: 10 * time.Second,
		ResetMargin:   5 * time.Second,
	}
}

// SecondaryDelay returns the wait before retrying after a secondary rate limit
// on the given zero-based attempt: InitialDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) SecondaryDelay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor runs remote calls under a RetryPolicy. It assumes it is the only
// consumer of the rate budget, so calls must be issued sequentially.
type Executor struct {
	policy RetryPolicy
	now    func() time.Time
	sleep  SleepFunc
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithClock replaces the time source and sleep function.
func WithClock(now func() time.Time, sleep SleepFunc) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor creates an Executor with the given policy.
func NewExecutor(policy RetryPolicy, opts ...ExecutorOption) *Executor {
	e := &Executor{policy: policy, now: time.Now, sleep: Sleep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Run executes op until it succeeds or the retry budget is spent, returning
// the last error unchanged in the latter case.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Run for operations that return a value. Every failure class is
// retried, including not-found; an op that treats a 404 as "absent" must
// convert it to a result before returning.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, err
		}

		remaining := attempt < e.policy.MaxRetries
		wait, ok := e.backoff(err, attempt, remaining)
		if !ok {
			return zero, err
		}
		if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
			return zero, fmt.Errorf("waiting to retry: %w", errors.Join(sleepErr, lastErr))
		}
	}

	return zero, lastErr
}

// backoff decides the wait before the next attempt. ok is false when the
// error must be propagated now.
func (e *Executor) backoff(err error, attempt int, remaining bool) (time.Duration, bool) {
	if !remaining {
		return 0, false
	}

	switch ClassifyError(err) {
	case ErrClassSecondary:
		wait := e.policy.SecondaryDelay(attempt)
		slog.Warn("secondary rate limit hit, backing off",
			"wait_minutes", fmt.Sprintf("%.1f", wait.Minutes()),
			"attempt", attempt+1,
			"max_attempts", e.policy.MaxRetries+1,
		)
		return wait, true

	case ErrClassPrimaryExhausted:
		var apiErr *driven.APIError
		errors.As(err, &apiErr)
		if !apiErr.RateReset.IsZero() {
			wait := apiErr.RateReset.Sub(e.now()) + e.policy.ResetMargin
			if wait > 0 {
				slog.Warn("primary rate limit exhausted, waiting for reset",
					"wait_minutes", fmt.Sprintf("%.1f", wait.Minutes()),
					"reset_at", apiErr.RateReset.UTC().Format(time.RFC3339),
				)
				return wait, true
			}
		}
	}

	slog.Warn("remote call failed, retrying",
		"error", err,
		"wait", e.policy.FallbackDelay,
		"attempt", attempt+1,
		"max_attempts", e.policy.MaxRetries+1,
	)
	return e.policy.FallbackDelay, true
}
