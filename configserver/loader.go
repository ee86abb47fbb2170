package configserver

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/resilience"
)

// ServiceResolver locates a service's base URL. The discovery cache
// implements it; the indirection keeps this package decoupled from the
// registry client.
type ServiceResolver interface {
	ServiceURL(service string) (string, error)
}

// LoaderConfig configures the startup configuration load.
type LoaderConfig struct {
	// AppName and Profile select the Environment to fetch.
	AppName string
	Profile string

	// DirectURI, when set, is used as the config service base URL and
	// discovery is skipped.
	DirectURI string

	// ServiceID is the registry name the config service is discovered
	// under when DirectURI is empty.
	ServiceID string

	// FailFast makes load failures fatal; otherwise the process continues
	// with whatever the store already holds (empty at startup).
	FailFast bool

	// MaxAttempts bounds fetch retries; <= 0 means unbounded.
	MaxAttempts int

	// Backoff is the delay policy between fetch attempts.
	Backoff resilience.Policy
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *LoaderConfig) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = "default"
	}
	if c.ServiceID == "" {
		c.ServiceID = "CONFIG-SERVER"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 6
	}
	if c.Backoff.BaseDelay == 0 {
		c.Backoff = resilience.DefaultPolicy()
	}
}

// Loader performs the one-shot startup configuration load. There is no
// background refresh; a reload is an explicit Load call.
type Loader struct {
	client   *Client
	resolver ServiceResolver
	store    *Store
	cfg      LoaderConfig
	log      *logger.Logger
}

// NewLoader creates a loader writing into store. resolver may be nil when
// DirectURI is set.
func NewLoader(client *Client, resolver ServiceResolver, store *Store, cfg LoaderConfig, log *logger.Logger) *Loader {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		client:   client,
		resolver: resolver,
		store:    store,
		cfg:      cfg,
		log:      log.WithComponent("configserver.loader"),
	}
}

// Store returns the store this loader writes into.
func (l *Loader) Store() *Store {
	return l.store
}

// Load fetches the Environment with bounded retries and applies the
// flattened result to the store in one atomic swap. Any fetch or parse
// error leaves the store untouched; with FailFast the error is returned,
// otherwise it is logged and Load returns nil.
func (l *Loader) Load(ctx context.Context) error {
	env, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts: l.cfg.MaxAttempts,
		Backoff:     l.cfg.Backoff,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			l.log.Warn("config load attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"retry_in", delay.String(),
			))
		},
	}, func() (*Environment, error) {
		return l.fetchOnce(ctx)
	})

	if err != nil {
		if l.cfg.FailFast {
			return fmt.Errorf("configserver: load %s/%s: %w", l.cfg.AppName, l.cfg.Profile, err)
		}
		l.log.Warn("config load failed, continuing with local configuration", logger.Fields(
			logger.FieldError, err.Error(),
		))
		return nil
	}

	merged := env.Flatten()
	l.store.Replace(merged)
	l.log.Info("configuration loaded", logger.Fields(
		"properties", len(merged),
		"sources", len(env.PropertySources),
	))
	return nil
}

// fetchOnce resolves the config service URL and fetches the Environment.
func (l *Loader) fetchOnce(ctx context.Context) (*Environment, error) {
	baseURL := l.cfg.DirectURI
	if baseURL == "" {
		if l.resolver == nil {
			return nil, fmt.Errorf("configserver: no direct URI and no resolver available")
		}
		url, err := l.resolver.ServiceURL(l.cfg.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("configserver: discover %s: %w", l.cfg.ServiceID, err)
		}
		baseURL = url
	}

	return l.client.Fetch(ctx, baseURL, l.cfg.AppName, l.cfg.Profile)
}
