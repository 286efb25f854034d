// Package runloop implements the exponential-backoff scheduling loop
// shared by every source: run a step function repeatedly, sleeping the
// configured default interval between successful steps and backing off
// multiplicatively (capped) on repeated failure, until the step function
// asks to stop or the context is canceled.
//
// Grounded on the teacher's RateLimiter.startCleanup ticker-goroutine
// idiom, generalized into a standalone reusable scheduler since the
// teacher carries no backoff type of its own.
package runloop

import (
	"context"
	"time"
)

// Result tells the RunLoop what to do after a step.
type Result int

const (
	// Sleep waits the current (non-backed-off) interval before the next step.
	Sleep Result = iota
	// Backoff multiplies the current interval (capped at Max) and waits that long.
	Backoff
	// Quit stops the loop immediately.
	Quit
)

// Config controls the backoff schedule.
type Config struct {
	Default time.Duration // interval used after a successful (Sleep) step
	Scale   float64       // multiplier applied to the current interval on Backoff
	Max     time.Duration // ceiling for the backed-off interval
}

// DefaultConfig matches the original implementation's scale/max
// relationship: max is ten times the default interval, scaled by 1.2 per
// consecutive failure.
func DefaultConfig(d time.Duration) Config {
	return Config{Default: d, Scale: 1.2, Max: d * 10}
}

// RunLoop drives step() on Config's schedule until it returns Quit or ctx
// is canceled.
type RunLoop struct {
	cfg     Config
	current time.Duration
}

// New creates a RunLoop starting at cfg.Default.
func New(cfg Config) *RunLoop {
	return &RunLoop{cfg: cfg, current: cfg.Default}
}

func (l *RunLoop) reset() {
	l.current = l.cfg.Default
}

func (l *RunLoop) backoff() {
	next := time.Duration(float64(l.current) * l.cfg.Scale)
	if next > l.cfg.Max {
		next = l.cfg.Max
	}
	l.current = next
}

// Run calls step repeatedly, applying the backoff schedule between calls,
// until step returns Quit or ctx is done.
func (l *RunLoop) Run(ctx context.Context, step func(ctx context.Context) Result) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch step(ctx) {
		case Quit:
			return
		case Sleep:
			l.reset()
		case Backoff:
			l.backoff()
		}

		timer := time.NewTimer(l.current)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
