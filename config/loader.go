package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps each Settings key to the environment variables that can
// populate it, most specific first. Spring-style names are accepted so a
// service can run against an existing deployment environment unchanged.
var envBindings = map[string][]string{
	"app_name":              {"SPRING_APPLICATION_NAME", "APP_NAME"},
	"port":                  {"SERVER_PORT", "APP_PORT"},
	"profile":               {"SPRING_PROFILES_ACTIVE"},
	"server_url":            {"EUREKA_SERVER_URL", "EUREKA_CLIENT_SERVICEURL_DEFAULTZONE"},
	"instance_ip":           {"EUREKA_INSTANCE_IP"},
	"instance_hostname":     {"EUREKA_INSTANCE_HOSTNAME"},
	"prefer_ip":             {"EUREKA_INSTANCE_PREFER_IP"},
	"secure":                {"EUREKA_INSTANCE_SECURE"},
	"fail_fast":             {"CLOUD_CONFIG_FAIL_FAST", "FAIL_FAST"},
	"heartbeat_interval":    {"EUREKA_HEARTBEAT_INTERVAL"},
	"refresh_interval":      {"EUREKA_REFRESH_INTERVAL"},
	"register_max_attempts": {"EUREKA_REGISTER_MAX_ATTEMPTS"},
	"request_timeout":       {"HTTP_REQUEST_TIMEOUT"},
	"config_uri":            {"CONFIG_SERVER_URI", "SPRING_CLOUD_CONFIG_URI"},
	"config_service_id":     {"CONFIG_SERVER_SERVICE_ID"},
	"config_username":       {"CONFIG_SERVER_USERNAME"},
	"config_password":       {"CONFIG_SERVER_PASSWORD"},
}

// LoaderConfig holds optional loader overrides.
type LoaderConfig struct {
	// EnvFile is an explicit .env path. When empty, ./.env is loaded if
	// present.
	EnvFile string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads Settings from the environment (and an optional .env file),
// applies defaults, and validates. The returned Settings are ready to use.
func Load(opts ...LoaderOption) (*Settings, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.EnvFile != "" {
		if err := godotenv.Load(lc.EnvFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", lc.EnvFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		// Best effort; existing process env always wins over the file.
		_ = godotenv.Load(".env")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, envs := range envBindings {
		keys := append([]string{key}, envs...)
		if err := v.BindEnv(keys...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: unmarshal settings: %w", err)
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
