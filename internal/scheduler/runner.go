package scheduler

import (
	"context"
	"errors"
	"log"
	"time"
)

// Job is one scheduled pass. now is the pass's reference time.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// Runner executes a Job on a fixed interval under the distributed lock, so
// the job runs effectively once across all replicas. A pass that fails, or
// loses the lock race, never prevents the next tick.
type Runner struct {
	job      Job
	locks    LockManager
	interval time.Duration
	maxHold  time.Duration
	minHold  time.Duration
	now      func() time.Time
}

func NewRunner(job Job, locks LockManager, interval, maxHold, minHold time.Duration) *Runner {
	return &Runner{
		job:      job,
		locks:    locks,
		interval: interval,
		maxHold:  maxHold,
		minHold:  minHold,
		now:      time.Now,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] %s stopping", r.job.Name())
			return nil
		case <-t.C:
			r.tick(ctx)
		}
	}
}

// tick runs one locked pass.
func (r *Runner) tick(ctx context.Context) {
	guard, err := r.locks.Acquire(ctx, r.job.Name(), r.maxHold, r.minHold)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return // another replica has this pass
		}
		log.Printf("[Scheduler] %s lock acquire failed: %v", r.job.Name(), err)
		return
	}
	defer func() {
		if err := guard.Release(ctx); err != nil {
			log.Printf("[Scheduler] %s lock release failed: %v", r.job.Name(), err)
		}
	}()

	if err := r.job.Run(ctx, r.now()); err != nil {
		log.Printf("[Scheduler] %s pass failed: %v", r.job.Name(), err)
	}
}
