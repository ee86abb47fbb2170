// Package bootstrap wires the registry and config clients into one
// lifecycle: register, fill the discovery cache, load remote config,
// then keep the lease renewed until Stop deregisters cleanly.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/skillsenselab/springkit/component"
	"github.com/skillsenselab/springkit/config"
	"github.com/skillsenselab/springkit/configserver"
	"github.com/skillsenselab/springkit/eureka"
	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/observability"
	"github.com/skillsenselab/springkit/version"
)

// App coordinates the client lifecycle. Start order: registration,
// initial discovery refresh, config load, background schedulers. Stop
// runs in reverse, so heartbeats always stop before deregistration.
type App struct {
	settings *config.Settings
	log      *logger.Logger

	components *component.Registry
	instance   *eureka.InstanceInfo
	client     *eureka.Client
	registrar  *eureka.Registrar
	heartbeat  *eureka.Heartbeat
	cache      *eureka.Cache
	loader     *configserver.Loader
	store      *configserver.Store

	mu      sync.Mutex
	started bool
	stopped bool
}

// New builds an App from validated settings.
func New(settings *config.Settings, opts ...Option) (*App, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	o := resolveOptions(opts)

	log := o.logger
	if log == nil {
		log = logger.NewFromEnv(settings.AppName)
	}

	metrics, err := observability.NewMetrics(o.meter)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: metrics: %w", err)
	}

	metadata := version.Metadata()
	metadata["profile"] = settings.Profile
	for k, v := range settings.Metadata {
		metadata[k] = v
	}
	for k, v := range o.metadata {
		metadata[k] = v
	}

	instance := eureka.NewInstanceInfo(settings.AppName, eureka.InstanceOptions{
		HostName:        settings.InstanceHostname,
		IPAddr:          settings.InstanceIP,
		Port:            settings.Port,
		Secure:          settings.Secure,
		PreferIP:        settings.PreferIP,
		Metadata:        metadata,
		RenewalInterval: settings.HeartbeatInterval,
		LeaseDuration:   3 * settings.HeartbeatInterval,
	})

	client, err := eureka.NewClient(eureka.ClientConfig{
		ServerURLs: settings.RegistryURLs(),
		Timeout:    settings.RequestTimeout,
	}, log, metrics)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: registry client: %w", err)
	}

	registrar := eureka.NewRegistrar(client, instance, eureka.RegistrarConfig{
		MaxAttempts: settings.RegisterMaxAttempts,
		FailFast:    settings.FailFast,
		Backoff:     o.backoff,
	}, log)

	cache := eureka.NewCache(client, settings.RefreshInterval, log)
	heartbeat := eureka.NewHeartbeat(client, registrar, settings.HeartbeatInterval, log)

	store := configserver.NewStore()
	cfgClient, err := configserver.NewClient(configserver.ClientConfig{
		Timeout:  settings.RequestTimeout,
		Username: settings.ConfigUsername,
		Password: settings.ConfigPassword,
	}, log, metrics)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: config client: %w", err)
	}

	loader := configserver.NewLoader(cfgClient, cache, store, configserver.LoaderConfig{
		AppName:   settings.AppName,
		Profile:   settings.Profile,
		DirectURI: settings.ConfigURI,
		ServiceID: settings.ConfigServiceID,
		FailFast:  settings.FailFast,
		Backoff:   o.backoff,
	}, log)

	app := &App{
		settings:   settings,
		log:        log.WithComponent("bootstrap"),
		components: component.NewRegistry(log),
		instance:   instance,
		client:     client,
		registrar:  registrar,
		heartbeat:  heartbeat,
		cache:      cache,
		loader:     loader,
		store:      store,
	}

	if err := app.registerComponents(); err != nil {
		return nil, err
	}
	return app, nil
}

// registerComponents wires the lifecycle pieces in start order. StopAll
// runs them in reverse, so the heartbeat stops before deregistration.
func (a *App) registerComponents() error {
	parts := []component.Component{
		&funcComponent{
			name:  "registration",
			start: a.registrar.Start,
			stop:  a.registrar.Stop,
			health: func(ctx context.Context) component.Health {
				return registrationHealth(a.registrar)
			},
		},
		&funcComponent{
			name:  "discovery",
			start: a.initialRefresh,
			stop: func(ctx context.Context) error {
				a.cache.Stop()
				return nil
			},
			health: func(ctx context.Context) component.Health {
				return component.Health{Name: "discovery", Status: component.StatusHealthy}
			},
		},
		&funcComponent{
			name:  "configuration",
			start: a.loader.Load,
			stop:  func(ctx context.Context) error { return nil },
			health: func(ctx context.Context) component.Health {
				return component.Health{Name: "configuration", Status: component.StatusHealthy}
			},
		},
		&funcComponent{
			name:  "schedulers",
			start: a.startSchedulers,
			stop: func(ctx context.Context) error {
				a.heartbeat.Stop()
				return nil
			},
			health: func(ctx context.Context) component.Health {
				return schedulersHealth(a.registrar, a.heartbeat)
			},
		},
	}

	for _, p := range parts {
		if err := a.components.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// initialRefresh performs the synchronous first snapshot fetch. It only
// runs when the instance actually registered; without registry presence
// discovery stays empty. A failed first refresh is fatal only with
// fail-fast, since later periodic refreshes can still recover.
func (a *App) initialRefresh(ctx context.Context) error {
	if !a.registrar.Registered() {
		a.log.Warn("skipping initial discovery refresh, not registered")
		return nil
	}
	if err := a.cache.Refresh(ctx); err != nil {
		if a.settings.FailFast {
			return fmt.Errorf("bootstrap: initial discovery refresh: %w", err)
		}
		a.log.Warn("initial discovery refresh failed, continuing", logger.Fields(
			logger.FieldError, err.Error(),
		))
	}
	return nil
}

// startSchedulers launches the background loops. The heartbeat only runs
// for a registered instance; the discovery refresh is independent.
func (a *App) startSchedulers(ctx context.Context) error {
	if a.registrar.Registered() {
		a.heartbeat.Start()
	}
	a.cache.Start()
	return nil
}

// Start runs the startup sequence. A failure unwinds the already started
// components before returning.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if a.stopped {
		return fmt.Errorf("bootstrap: app already stopped")
	}

	a.log.Info("starting", logger.Fields(
		logger.FieldInstanceID, a.instance.ID,
		"registry_urls", a.settings.RegistryURLs(),
	))

	if err := a.components.StartAll(ctx); err != nil {
		if stopErr := a.components.StopAll(ctx); stopErr != nil {
			a.log.Error("unwind after failed start reported errors", logger.Fields(
				logger.FieldError, stopErr.Error(),
			))
		}
		return err
	}

	a.started = true
	a.log.Info("started")
	return nil
}

// Stop shuts the client down: schedulers first, deregistration last.
// Idempotent and safe after a partial Start.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil
	}
	a.stopped = true
	a.started = false

	err := a.components.StopAll(ctx)
	a.log.Info("stopped")
	return err
}

// Run starts the app, blocks until an interrupt/terminate signal or
// context cancellation, then stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.log.Info("context cancelled, shutting down")
	}

	return a.Stop(context.Background())
}

// ConfigStore returns the remote configuration view.
func (a *App) ConfigStore() *configserver.Store {
	return a.store
}

// Discovery returns the discovery cache for service lookups.
func (a *App) Discovery() *eureka.Cache {
	return a.cache
}

// Instance returns this process's registry identity.
func (a *App) Instance() *eureka.InstanceInfo {
	return a.instance
}

// Status reports the health of all lifecycle components, for the host's
// own health endpoint.
func (a *App) Status(ctx context.Context) []component.Health {
	return a.components.HealthAll(ctx)
}

func registrationHealth(r *eureka.Registrar) component.Health {
	h := component.Health{Name: "registration", Message: r.State().String()}
	switch r.State() {
	case eureka.StateRegistered:
		h.Status = component.StatusHealthy
	case eureka.StateUnregistered:
		h.Status = component.StatusDegraded
	default:
		h.Status = component.StatusUnhealthy
	}
	return h
}

func schedulersHealth(r *eureka.Registrar, hb *eureka.Heartbeat) component.Health {
	h := component.Health{Name: "schedulers", Status: component.StatusHealthy}
	if r.Registered() && !hb.Running() {
		h.Status = component.StatusUnhealthy
		h.Message = "heartbeat not running"
	}
	return h
}
