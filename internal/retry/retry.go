package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrExhausted is returned when every attempt allowed by a Policy failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy describes a bounded retry schedule. The zero value makes a single
// attempt with no delay.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	Backoff     time.Duration // delay before the second attempt
	Multiplier  float64       // growth per attempt; values <= 1 keep the delay fixed
	Jitter      float64       // ±fraction applied to each delay, 0 disables
	Clock       Clock         // nil means the wall clock
}

// Fixed returns a policy that waits the same delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Backoff: delay, Multiplier: 1}
}

// Exponential returns a policy that doubles the delay on each retry with
// ±30% jitter.
func Exponential(attempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Backoff: base, Multiplier: 2, Jitter: 0.3}
}

// WithClock returns a copy of p that sleeps on c.
func (p Policy) WithClock(c Clock) Policy {
	p.Clock = c
	return p
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) clock() Clock {
	if p.Clock == nil {
		return Wall
	}
	return p.Clock
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if attempt > 1 {
			if err := Sleep(ctx, p.clock(), p.Delay(attempt-1)); err != nil {
				return fmt.Errorf("retry cancelled: %w", err)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
		if !isRetryable(err) {
			return unwrapPermanent(err)
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.attempts(), lastErr)
}

// Until polls cond until it reports true. A cond error that is not retryable
// stops polling immediately; retryable errors count as a false result.
func (p Policy) Until(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	return p.Do(ctx, func(ctx context.Context, _ int) error {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errConditionFalse
		}
		return nil
	})
}

var errConditionFalse = errors.New("condition not met")

// Delay computes the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	delay := p.Backoff
	if p.Multiplier > 1 {
		for i := 1; i < n; i++ {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
	if p.Jitter > 0 {
		jitter := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	}
	return delay
}

// Sleep waits for d on clock c, returning early if ctx is cancelled.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

// isRetryable returns true if the error represents a transient failure worth
// retrying. A per-attempt deadline is transient; cancellation of the caller's
// context is caught before this is consulted.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var p *permanentError
	return !errors.As(err, &p)
}
