// Package retry runs an operation a bounded number of times with a pause
// between tries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures Do. Zero values fall back to one attempt with no delay.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Delay is the pause before the second try.
	Delay time.Duration
	// Multiplier grows the delay after each failed try; values <= 1 keep it fixed.
	Multiplier float64
	// MaxDelay caps the grown delay when positive.
	MaxDelay time.Duration
	// OnRetry fires after each failed try that will be retried.
	OnRetry func(err error, wait time.Duration)
	// OnGiveUp fires once when every attempt failed.
	OnGiveUp func(lastErr error, attempts int)
}

// Permanent marks err as not worth retrying; Do returns the wrapped error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// ExhaustedError is returned once the attempt budget is spent.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls fn until it returns nil, returns a Permanent error, the budget runs
// out or ctx is done while waiting. attempt starts at 1. There is no pause
// after the final attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		attempt int
		stopped bool
	)
	op := func() error {
		attempt++
		err := fn(ctx, attempt)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			stopped = true
		}
		return err
	}
	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(p), uint64(attempts-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil, stopped:
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()) && attempt < attempts:
		return err
	}

	if p.OnGiveUp != nil {
		p.OnGiveUp(err, attempt)
	}
	return &ExhaustedError{Attempts: attempt, Last: err}
}

// newBackOff returns a fixed schedule, or an exponential one without jitter
// when the policy asks the delay to grow.
func newBackOff(p Policy) backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Delay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		eb.MaxInterval = p.MaxDelay
	} else {
		eb.MaxInterval = time.Duration(1<<63 - 1)
	}
	eb.Reset()
	return eb
}
