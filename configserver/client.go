package configserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skillsenselab/springkit/httpclient"
	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/observability"
)

// PropertySource is one named bundle of configuration keys. Sources
// earlier in the Environment list take precedence over later ones.
type PropertySource struct {
	Name   string         `json:"name"`
	Source map[string]any `json:"source"`
}

// Environment is the config service response for one application/profile.
type Environment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	Label           string           `json:"label"`
	Version         string           `json:"version"`
	PropertySources []PropertySource `json:"propertySources"`
}

// Flatten merges the property sources into a single key/value map with
// first-source-wins precedence. Values are stringified.
func (e *Environment) Flatten() map[string]string {
	merged := make(map[string]string)
	for i := len(e.PropertySources) - 1; i >= 0; i-- {
		for k, v := range e.PropertySources[i].Source {
			merged[k] = stringify(v)
		}
	}
	return merged
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		// JSON numbers arrive as float64; render integers without a
		// trailing fraction.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ClientConfig configures the config service client.
type ClientConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Username and Password enable basic auth.
	Username string
	Password string
}

// Client fetches Environment documents from a config service.
type Client struct {
	http    *httpclient.Client
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewClient creates a config service client. Nil logger and metrics are
// allowed.
func NewClient(cfg ClientConfig, log *logger.Logger, metrics *observability.Metrics) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:  cfg.Timeout,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    hc,
		log:     log.WithComponent("configserver.client"),
		metrics: metrics,
	}, nil
}

// Fetch retrieves the Environment for app/profile from the config service
// at baseURL: GET {baseURL}/{app}/{profile}.
func (c *Client) Fetch(ctx context.Context, baseURL, app, profile string) (*Environment, error) {
	start := time.Now()
	env, err := c.fetch(ctx, baseURL, app, profile)
	c.record(ctx, err, time.Since(start))
	return env, err
}

func (c *Client) fetch(ctx context.Context, baseURL, app, profile string) (*Environment, error) {
	path := fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(app),
		url.PathEscape(profile),
	)

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch config %s/%s: %w", app, profile, err)
	}

	var env Environment
	if err := resp.DecodeJSON(&env); err != nil {
		return nil, fmt.Errorf("fetch config %s/%s: %w", app, profile, err)
	}
	return &env, nil
}

func (c *Client) record(ctx context.Context, err error, elapsed time.Duration) {
	outcome := observability.OutcomeSuccess
	switch {
	case err == nil:
	case httpclient.IsNetwork(err):
		outcome = observability.OutcomeNetwork
	default:
		outcome = observability.OutcomeProtocol
	}
	c.metrics.RecordOperation(ctx, "config_fetch", outcome, elapsed)

	if err != nil {
		c.log.Warn("config fetch failed", logger.Fields(
			logger.FieldError, err.Error(),
		))
	}
}
