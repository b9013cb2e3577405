package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances instantly on After so loops run without real sleeps.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// stuckClock never fires After, forcing the context branch of the select.
type stuckClock struct{ now time.Time }

func (c *stuckClock) Now() time.Time { return c.now }
func (c *stuckClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestUntilFirstProbeSucceedsWithoutSleeping(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}

	got, ok, err := Until(context.Background(), clk, time.Second, 30*time.Second,
		func(_ context.Context, elapsed, timeout time.Duration) (string, bool, error) {
			assert.Equal(t, time.Duration(0), elapsed)
			assert.Equal(t, 30*time.Second, timeout)
			return "done", true, nil
		})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "done", got)
	assert.Empty(t, clk.slept)
}

func TestUntilSucceedsAfterRetries(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}

	var elapsedSeen []time.Duration
	calls := 0

	got, ok, err := Until(context.Background(), clk, time.Second, 30*time.Second,
		func(_ context.Context, elapsed, _ time.Duration) (int, bool, error) {
			elapsedSeen = append(elapsedSeen, elapsed)
			calls++
			return 42, calls == 3, nil
		})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, elapsedSeen)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clk.slept)
}

func TestUntilTimeoutIsASentinelNotAnError(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}

	calls := 0
	got, ok, err := Until(context.Background(), clk, time.Second, 3*time.Second,
		func(_ context.Context, _, _ time.Duration) (string, bool, error) {
			calls++
			return "", false, nil
		})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)

	// Probes run at 0s, 1s and 2s of virtual time; the budget is spent at 3s.
	assert.Equal(t, 3, calls)
}

func TestUntilPropagatesProbeError(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	boom := errors.New("boom")

	calls := 0
	_, ok, err := Until(context.Background(), clk, time.Second, 30*time.Second,
		func(_ context.Context, _, _ time.Duration) (string, bool, error) {
			calls++
			if calls == 2 {
				return "", false, boom
			}
			return "", false, nil
		})

	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestUntilStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, ok, err := Until(ctx, &stuckClock{now: time.Unix(1000, 0)}, time.Second, 30*time.Second,
		func(_ context.Context, _, _ time.Duration) (string, bool, error) {
			calls++
			return "", false, nil
		})

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
