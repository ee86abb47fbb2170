// Package periodic provides a cancellable repeating background task with
// an interruptible wait between iterations.
//
// Stop does not return until the in-flight iteration (if any) has
// finished, so callers can rely on no iteration running after Stop.
package periodic

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/springkit/logger"
)

// TaskFunc is one iteration of a periodic task. The returned duration
// overrides the wait before the next iteration; zero or negative keeps the
// runner's configured interval.
type TaskFunc func(ctx context.Context) time.Duration

// Runner executes a TaskFunc at a fixed interval on a background goroutine.
// Iterations are strictly sequential; two are never in flight at once.
type Runner struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRunner creates a runner. It does not start until Start is called.
func NewRunner(name string, interval time.Duration, fn TaskFunc, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.WithComponent(name),
	}
}

// Start launches the background loop. Calling Start on a running runner is
// a no-op. The first iteration runs after one full interval.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.log.Debug("already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx, r.done)
	r.log.Debug("started", logger.Fields("interval", r.interval.String()))
}

// Stop cancels the pending wait and blocks until the in-flight iteration,
// if any, completes. The lock is held across the drain, so every Stop
// caller waits and Start cannot launch a new loop while the old one is
// still winding down. Idempotent and safe on a runner that never started.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return
	}
	wasRunning := r.running
	if wasRunning {
		r.running = false
		r.cancel()
	}
	<-r.done

	if wasRunning {
		r.log.Debug("stopped")
	}
}

// Running reports whether the background loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	wait := r.interval
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := r.fn(ctx)

		if ctx.Err() != nil {
			return
		}
		if next <= 0 {
			next = r.interval
		}
		timer.Reset(next)
	}
}
