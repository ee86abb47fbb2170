// Package config loads the local bootstrap settings the client needs
// before it can talk to the registry or the config service: application
// identity, registry addresses, intervals, and fail-fast policy. Values
// come from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/skillsenselab/springkit/validation"
)

// Settings is the consumed configuration for the registry and config
// clients. Metadata is set programmatically, not from the environment.
type Settings struct {
	// AppName is the logical service name registered with the registry.
	AppName string `mapstructure:"app_name" validate:"required"`

	// Port is the service port advertised to the registry.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// Profile is the active configuration profile.
	Profile string `mapstructure:"profile"`

	// ServerURL holds one or more registry base URLs, comma-separated.
	ServerURL string `mapstructure:"server_url"`

	// InstanceIP overrides the auto-detected IP address.
	InstanceIP string `mapstructure:"instance_ip"`

	// InstanceHostname overrides the auto-detected hostname.
	InstanceHostname string `mapstructure:"instance_hostname"`

	// PreferIP advertises the IP address instead of the hostname.
	PreferIP bool `mapstructure:"prefer_ip"`

	// Secure marks the advertised endpoint as https.
	Secure bool `mapstructure:"secure"`

	// FailFast makes startup registration and config-load failures fatal.
	FailFast bool `mapstructure:"fail_fast"`

	// HeartbeatInterval is the lease renewal period.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"min=1s"`

	// RefreshInterval is the registry snapshot refresh period.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"min=1s"`

	// RegisterMaxAttempts bounds startup registration retries.
	RegisterMaxAttempts int `mapstructure:"register_max_attempts" validate:"min=1"`

	// RequestTimeout is the per-request HTTP timeout.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// ConfigURI, when set, bypasses discovery for the config service.
	ConfigURI string `mapstructure:"config_uri"`

	// ConfigServiceID is the registry name of the config service.
	ConfigServiceID string `mapstructure:"config_service_id"`

	// ConfigUsername and ConfigPassword enable basic auth on config fetches.
	ConfigUsername string `mapstructure:"config_username"`
	ConfigPassword string `mapstructure:"config_password"`

	// Metadata is attached to the registered instance.
	Metadata map[string]string `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (s *Settings) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.Profile == "" {
		s.Profile = "default"
	}
	if s.ServerURL == "" {
		s.ServerURL = "http://localhost:8761/eureka"
	}
	if s.HeartbeatInterval == 0 {
		s.HeartbeatInterval = 30 * time.Second
	}
	if s.RefreshInterval == 0 {
		s.RefreshInterval = 30 * time.Second
	}
	if s.RegisterMaxAttempts == 0 {
		s.RegisterMaxAttempts = 6
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 10 * time.Second
	}
	if s.ConfigServiceID == "" {
		s.ConfigServiceID = "CONFIG-SERVER"
	}
}

// Validate checks the settings. Configuration errors are fatal and are
// reported before any network call is attempted.
func (s *Settings) Validate() error {
	if err := validation.Validate(s); err != nil {
		return err
	}
	if len(s.RegistryURLs()) == 0 {
		return fmt.Errorf("config: server_url must name at least one registry URL")
	}
	for _, u := range s.RegistryURLs() {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("config: registry URL %q must be http or https", u)
		}
	}
	return nil
}

// RegistryURLs splits ServerURL into trimmed base URLs, dropping empties.
func (s *Settings) RegistryURLs() []string {
	parts := strings.Split(s.ServerURL, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, strings.TrimRight(p, "/"))
		}
	}
	return urls
}
