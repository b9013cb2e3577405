package poll

import (
	"context"
	"time"
)

// Clock is the subset of github.com/juju/clock.Clock the driver needs.
// Production callers pass clock.WallClock; tests pass a scripted fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Probe inspects the remote side once. It receives the time spent so far
// and the overall budget so it can render progress. done=true ends the loop.
type Probe[T any] func(ctx context.Context, elapsed, timeout time.Duration) (result T, done bool, err error)

// Until probes until the first success, a probe error, an exhausted time
// budget or context cancellation. An exhausted budget is an expected,
// recoverable outcome: ok=false with a nil error. The probe is never
// invoked past the budget, and a first-probe success sleeps zero times.
func Until[T any](ctx context.Context, clk Clock, interval, timeout time.Duration, probe Probe[T]) (result T, ok bool, err error) {
	var zero T
	start := clk.Now()

	for {
		elapsed := clk.Now().Sub(start)
		if elapsed >= timeout {
			return zero, false, nil
		}

		result, done, err := probe(ctx, elapsed, timeout)
		if err != nil {
			return zero, false, err
		}
		if done {
			return result, true, nil
		}

		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-clk.After(interval):
		}
	}
}
