package bootstrap

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/resilience"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects option values before applying them to App.
type appOptions struct {
	logger   *logger.Logger
	meter    metric.Meter
	metadata map[string]string
	backoff  resilience.Policy
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{backoff: resilience.DefaultPolicy()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, a logger is created from
// the environment.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithMeter sets the OpenTelemetry meter for operation metrics. If not
// set, the global meter provider is used.
func WithMeter(m metric.Meter) Option {
	return func(o *appOptions) { o.meter = m }
}

// WithMetadata adds instance metadata on top of the settings' metadata.
func WithMetadata(md map[string]string) Option {
	return func(o *appOptions) { o.metadata = md }
}

// WithBackoff overrides the retry backoff policy used for registration
// and config loading.
func WithBackoff(p resilience.Policy) Option {
	return func(o *appOptions) { o.backoff = p }
}
