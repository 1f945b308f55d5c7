// Package retry implements exponential-backoff retries for navigation,
// store connections and bootstrap steps.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy configures one retry site.
type Policy struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Factor       float64       `mapstructure:"factor"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`

	// Notify, when set, is called before every backoff sleep.
	Notify func(attempt int, err error, delay time.Duration) `mapstructure:"-"`
}

// WithNotify returns a copy of p that reports retries to fn.
func (p Policy) WithNotify(fn func(attempt int, err error, delay time.Duration)) Policy {
	p.Notify = fn
	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextDelay grows d by factor. The result never exceeds limit (when set)
// and saturates instead of overflowing.
func nextDelay(d time.Duration, factor float64, limit time.Duration) time.Duration {
	if limit > 0 && d >= limit {
		return limit
	}
	next := float64(d) * factor
	if limit > 0 && next > float64(limit) {
		return limit
	}
	if next >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(next)
}

// Do runs op until it succeeds or p.MaxAttempts attempts have been made.
// The last error is returned unchanged on exhaustion. If ctx is cancelled
// between attempts, the context error is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	delay := p.InitialDelay

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt >= attempts {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		wait := delay
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if p.Notify != nil {
			p.Notify(attempt, err, wait)
		}
		if wait > 0 {
			if serr := sleep(ctx, wait); serr != nil {
				return zero, serr
			}
		}
		delay = nextDelay(delay, factor, p.MaxDelay)
	}
}
