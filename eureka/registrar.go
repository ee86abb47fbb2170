package eureka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/resilience"
)

// State is the registration lifecycle state.
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateDeregistered
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}

// RegistrarConfig configures the registration lifecycle.
type RegistrarConfig struct {
	// MaxAttempts bounds startup registration retries; <= 0 means
	// unbounded (only sensible with a cancellable context).
	MaxAttempts int

	// FailFast makes Start return an error when registration cannot be
	// established. When false, Start logs a warning and the process
	// continues without registry presence.
	FailFast bool

	// Backoff is the delay policy between attempts.
	Backoff resilience.Policy
}

// Registrar drives the registration lifecycle of this process's instance:
// unregistered, registering, registered, deregistered (terminal).
type Registrar struct {
	client   *Client
	instance *InstanceInfo
	cfg      RegistrarConfig
	log      *logger.Logger

	state atomic.Int32
	mu    sync.Mutex
}

// NewRegistrar creates a registration lifecycle for the given instance.
func NewRegistrar(client *Client, instance *InstanceInfo, cfg RegistrarConfig, log *logger.Logger) *Registrar {
	if cfg.Backoff.BaseDelay == 0 {
		cfg.Backoff = resilience.DefaultPolicy()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registrar{
		client:   client,
		instance: instance,
		cfg:      cfg,
		log:      log.WithComponent("eureka.registrar"),
	}
}

// State returns the current lifecycle state.
func (r *Registrar) State() State {
	return State(r.state.Load())
}

// Registered reports whether the instance currently holds a registration.
func (r *Registrar) Registered() bool {
	return r.State() == StateRegistered
}

// Instance returns the instance identity this registrar manages.
func (r *Registrar) Instance() *InstanceInfo {
	return r.instance
}

// Start registers the instance, retrying with backoff up to MaxAttempts.
// With FailFast the exhausted retry budget is an error; otherwise the
// process continues unregistered and Start returns nil. Calling Start on
// an already registered instance is a no-op.
func (r *Registrar) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.State() {
	case StateRegistered:
		return nil
	case StateDeregistered:
		return fmt.Errorf("eureka: registrar already stopped")
	}

	r.state.Store(int32(StateRegistering))
	// The registry stores the status carried in the registration body and
	// discovery only routes to UP instances, so register as UP.
	r.instance.SetStatus(StatusUp)

	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
		MaxAttempts: r.cfg.MaxAttempts,
		Backoff:     r.cfg.Backoff,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			r.log.Warn("registration attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"retry_in", delay.String(),
			))
		},
	}, func() error {
		return r.client.Register(ctx, r.instance)
	})

	if err != nil {
		r.state.Store(int32(StateUnregistered))
		r.instance.SetStatus(StatusStarting)
		if r.cfg.FailFast {
			if r.cfg.MaxAttempts > 0 {
				return fmt.Errorf("eureka: registration failed after %d attempts: %w", r.cfg.MaxAttempts, err)
			}
			return fmt.Errorf("eureka: registration failed: %w", err)
		}
		r.log.Warn("registration failed, continuing without registry presence", logger.Fields(
			logger.FieldInstanceID, r.instance.ID,
			logger.FieldError, err.Error(),
		))
		return nil
	}

	r.state.Store(int32(StateRegistered))
	r.log.Info("registration established", logger.Fields(
		logger.FieldInstanceID, r.instance.ID,
	))
	return nil
}

// Reregister performs a single registration attempt, used when the
// registry reports the lease gone mid-flight. No retry loop.
func (r *Registrar) Reregister(ctx context.Context) error {
	if r.State() != StateRegistered {
		return ErrNotRegistered
	}
	if err := r.client.Register(ctx, r.instance); err != nil {
		return err
	}
	r.log.Info("registration re-established", logger.Fields(
		logger.FieldInstanceID, r.instance.ID,
	))
	return nil
}

// UpdateStatus overrides the instance status in the registry and locally.
func (r *Registrar) UpdateStatus(ctx context.Context, status Status) error {
	if r.State() != StateRegistered {
		return ErrNotRegistered
	}
	if err := r.client.UpdateStatus(ctx, r.instance.App, r.instance.ID, status); err != nil {
		return err
	}
	r.instance.SetStatus(status)
	return nil
}

// Stop deregisters the instance. Deregistration errors are logged only;
// the registrar always reaches the terminal state. Idempotent.
func (r *Registrar) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateDeregistered {
		return nil
	}

	wasRegistered := r.State() == StateRegistered
	r.instance.SetStatus(StatusOutOfService)

	if wasRegistered {
		if err := r.client.Deregister(ctx, r.instance.App, r.instance.ID); err != nil {
			r.log.Warn("deregistration failed", logger.Fields(
				logger.FieldInstanceID, r.instance.ID,
				logger.FieldError, err.Error(),
			))
		}
	}

	r.state.Store(int32(StateDeregistered))
	return nil
}
