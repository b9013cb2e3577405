package daemon

import (
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
)

// RunFunc executes one backup pass and returns its report. The daemon owns
// scheduling; everything else about a run (manager session, storage, report
// submission) lives behind this function.
type RunFunc func(ctx context.Context, trigger string) (*model.RunReport, error)

// Runner executes backup passes on a fixed interval, with manually
// triggered runs interleaved between ticks. A manual run resets the tick,
// so two passes never follow each other closer than the interval.
type Runner struct {
	run      RunFunc
	clk      clock.Clock
	state    *State
	triggers chan string

	mu       sync.RWMutex
	interval time.Duration
}

func NewRunner(run RunFunc, interval time.Duration, clk clock.Clock) *Runner {
	return &Runner{
		run:      run,
		clk:      clk,
		state:    NewState(),
		triggers: make(chan string, 1),
		interval: interval,
	}
}

func (r *Runner) State() *State {
	return r.state
}

func (r *Runner) Interval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.interval
}

// SetInterval takes effect when the current wait expires.
func (r *Runner) SetInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if interval == r.interval {
		return
	}

	logger.Log.Info("run interval updated",
		zap.Duration("old", r.interval),
		zap.Duration("new", interval))
	r.interval = interval
}

// Trigger queues a manual run. It reports false when one is already queued.
func (r *Runner) Trigger(trigger string) bool {
	select {
	case r.triggers <- trigger:
		return true
	default:
		return false
	}
}

// Loop blocks until ctx is cancelled. The first pass starts immediately:
// stale resources should not wait out a full interval after a restart.
func (r *Runner) Loop(ctx context.Context) {
	r.execute(ctx, model.TriggerDaemon)

	for {
		interval := r.Interval()
		r.state.SetNextRun(r.clk.Now().Add(interval))

		select {
		case <-ctx.Done():
			return
		case trigger := <-r.triggers:
			r.execute(ctx, trigger)
		case <-r.clk.After(interval):
			r.execute(ctx, model.TriggerDaemon)
		}
	}
}

func (r *Runner) execute(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}

	r.state.SetRunning(true)
	defer r.state.SetRunning(false)

	logger.Log.Info("starting backup pass", zap.String("trigger", trigger))

	report, err := r.run(ctx, trigger)
	if err != nil {
		logger.Log.Error("backup pass failed", zap.Error(err))
		r.state.RecordFailure(err)

		return
	}

	r.state.RecordRun(report)
}
