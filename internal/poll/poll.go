// Package poll implements the fixed-interval polling used to wait for the
// positioner to converge and for the instrument to finish a sweep.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/banshee-data/antenna.report/internal/timeutil"
)

// DefaultInterval is the fixed delay between polls.
const DefaultInterval = 100 * time.Millisecond

// ErrTimeout is returned (wrapped in a *TimeoutError) when a policy runs out of
// attempts or time before the condition is satisfied.
var ErrTimeout = errors.New("poll: condition not met before limit")

// TimeoutError describes a stalled poll.
type TimeoutError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: stalled after %d attempts (%v)", e.Op, e.Attempts, e.Elapsed)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Policy bounds a polling loop. A zero MaxAttempts and zero Timeout poll
// forever, which is only useful when the operator is the watchdog.
type Policy struct {
	// Interval between attempts; DefaultInterval when zero.
	Interval time.Duration
	// MaxAttempts caps the number of condition evaluations (0 = no cap).
	MaxAttempts int
	// Timeout caps the elapsed time measured on the policy clock (0 = no cap).
	Timeout time.Duration
}

// Bounded reports whether the policy will eventually give up.
func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0 || p.Timeout > 0
}

func (p Policy) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.interval())
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Condition is evaluated once per attempt. It returns true when the wait is
// over; a non-nil error aborts the loop immediately.
type Condition func(attempt int) (bool, error)

// Until evaluates cond immediately and then once per interval until it
// reports done, returns an error, or the policy is exhausted.
func Until(ctx context.Context, clock timeutil.Clock, p Policy, op string, cond Condition) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	b := p.backOff(ctx)
	b.Reset()
	start := clock.Now()

	for attempt := 1; ; attempt++ {
		done, err := cond(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return &TimeoutError{Op: op, Attempts: attempt, Elapsed: clock.Since(start)}
		}
		if p.Timeout > 0 && clock.Since(start)+next > p.Timeout {
			return &TimeoutError{Op: op, Attempts: attempt, Elapsed: clock.Since(start)}
		}
		clock.Sleep(next)
	}
}
