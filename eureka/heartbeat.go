package eureka

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/periodic"
)

// maxHeartbeatStretch caps the interval growth on consecutive heartbeat
// failures at twice the configured renewal interval.
const maxHeartbeatStretch = 2.0

// Heartbeat renews the instance lease on a fixed period. A NotFound
// response triggers exactly one re-registration attempt before the next
// tick; transient errors are logged and ticking continues. Consecutive
// failures stretch the interval up to maxHeartbeatStretch.
type Heartbeat struct {
	client    *Client
	registrar *Registrar
	interval  time.Duration
	runner    *periodic.Runner
	log       *logger.Logger

	// failures is only touched from the runner goroutine.
	failures int
}

// NewHeartbeat creates the lease renewal scheduler. It does not start
// ticking until Start is called.
func NewHeartbeat(client *Client, registrar *Registrar, interval time.Duration, log *logger.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	h := &Heartbeat{
		client:    client,
		registrar: registrar,
		interval:  interval,
		log:       log.WithComponent("eureka.heartbeat"),
	}
	h.runner = periodic.NewRunner("heartbeat", interval, h.tick, log)
	return h
}

// Start begins ticking. Idempotent.
func (h *Heartbeat) Start() {
	h.runner.Start()
}

// Stop cancels the pending tick and blocks until the in-flight tick, if
// any, completes. No tick runs after Stop returns.
func (h *Heartbeat) Stop() {
	h.runner.Stop()
}

// Running reports whether the scheduler is active.
func (h *Heartbeat) Running() bool {
	return h.runner.Running()
}

// tick sends one heartbeat. The returned duration overrides the next wait
// when consecutive failures stretch the interval.
func (h *Heartbeat) tick(ctx context.Context) time.Duration {
	inst := h.registrar.Instance()

	err := h.client.Heartbeat(ctx, inst.App, inst.ID)
	if err == nil {
		if h.failures > 0 {
			h.log.Info("heartbeat recovered", logger.Fields(
				logger.FieldInstanceID, inst.ID,
			))
			h.failures = 0
		}
		return 0
	}

	if errors.Is(err, ErrInstanceNotFound) {
		h.log.Warn("lease evicted by registry, re-registering", logger.Fields(
			logger.FieldInstanceID, inst.ID,
		))
		if rerr := h.registrar.Reregister(ctx); rerr != nil {
			h.log.Warn("re-registration failed, will retry on next tick", logger.Fields(
				logger.FieldInstanceID, inst.ID,
				logger.FieldError, rerr.Error(),
			))
		}
		h.failures = 0
		return 0
	}

	h.failures++
	h.log.Warn("heartbeat failed", logger.Fields(
		logger.FieldInstanceID, inst.ID,
		logger.FieldAttempt, h.failures,
		logger.FieldError, err.Error(),
	))

	stretch := math.Min(math.Pow(1.5, float64(h.failures-1)), maxHeartbeatStretch)
	return time.Duration(float64(h.interval) * stretch)
}
