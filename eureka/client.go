package eureka

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/skillsenselab/springkit/httpclient"
	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/observability"
)

// ClientConfig configures the registry transport.
type ClientConfig struct {
	// ServerURLs are the registry base URLs, e.g. "http://eureka:8761/eureka".
	ServerURLs []string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *ClientConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *ClientConfig) Validate() error {
	if len(c.ServerURLs) == 0 {
		return fmt.Errorf("eureka: at least one server URL is required")
	}
	return nil
}

// Client is the low-level registry REST transport. When more than one
// server URL is configured, requests that fail at the network level or
// with a server error are retried against the next server, round-robin,
// each server tried at most once per operation.
type Client struct {
	servers []string
	http    *httpclient.Client
	log     *logger.Logger
	metrics *observability.Metrics

	mu  sync.Mutex
	idx int
}

// NewClient creates a registry transport. A nil logger disables logging;
// nil metrics disable instrumentation.
func NewClient(cfg ClientConfig, log *logger.Logger, metrics *observability.Metrics) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	hc, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}

	servers := make([]string, len(cfg.ServerURLs))
	for i, s := range cfg.ServerURLs {
		servers[i] = trimSlash(s)
	}

	return &Client{
		servers: servers,
		http:    hc,
		log:     log.WithComponent("eureka.client"),
		metrics: metrics,
	}, nil
}

// Register announces the instance to the registry. POST /apps/{app},
// success is 204 (200 accepted too).
func (c *Client) Register(ctx context.Context, inst *InstanceInfo) error {
	_, err := c.do(ctx, "register", httpclient.Request{
		Method: http.MethodPost,
		Path:   "/apps/" + inst.App,
		Body:   inst.wireBody(),
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", inst.ID, err)
	}
	c.log.Info("instance registered", logger.Fields(
		logger.FieldInstanceID, inst.ID,
	))
	return nil
}

// Heartbeat renews the instance lease. PUT /apps/{app}/{id}?status=UP.
// A 404 means the lease was evicted and is reported as ErrInstanceNotFound.
func (c *Client) Heartbeat(ctx context.Context, app, instanceID string) error {
	_, err := c.do(ctx, "heartbeat", httpclient.Request{
		Method: http.MethodPut,
		Path:   "/apps/" + app + "/" + url.PathEscape(instanceID),
		Query:  map[string]string{"status": string(StatusUp)},
	})
	if httpclient.IsNotFound(err) {
		return fmt.Errorf("heartbeat %s: %w", instanceID, ErrInstanceNotFound)
	}
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", instanceID, err)
	}
	return nil
}

// Deregister removes the instance from the registry. DELETE /apps/{app}/{id}.
func (c *Client) Deregister(ctx context.Context, app, instanceID string) error {
	_, err := c.do(ctx, "deregister", httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/apps/" + app + "/" + url.PathEscape(instanceID),
	})
	if err != nil {
		return fmt.Errorf("deregister %s: %w", instanceID, err)
	}
	c.log.Info("instance deregistered", logger.Fields(
		logger.FieldInstanceID, instanceID,
	))
	return nil
}

// UpdateStatus overrides the instance status in the registry.
// PUT /apps/{app}/{id}/status?value={status}.
func (c *Client) UpdateStatus(ctx context.Context, app, instanceID string, status Status) error {
	_, err := c.do(ctx, "update_status", httpclient.Request{
		Method: http.MethodPut,
		Path:   "/apps/" + app + "/" + url.PathEscape(instanceID) + "/status",
		Query:  map[string]string{"value": string(status)},
	})
	if err != nil {
		return fmt.Errorf("update status %s: %w", instanceID, err)
	}
	return nil
}

// FetchApps retrieves the full registry snapshot. GET /apps.
func (c *Client) FetchApps(ctx context.Context) (*Snapshot, error) {
	resp, err := c.do(ctx, "fetch_apps", httpclient.Request{
		Method:  http.MethodGet,
		Path:    "/apps",
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch apps: %w", err)
	}

	snap, err := parseSnapshot(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch apps: %w", httpclient.NewProtocolError(err, resp.Body))
	}
	return snap, nil
}

// FetchApp retrieves the instances of one application. GET /apps/{app}.
// An unknown application is reported as ErrServiceNotFound.
func (c *Client) FetchApp(ctx context.Context, app string) ([]InstanceRecord, error) {
	resp, err := c.do(ctx, "fetch_app", httpclient.Request{
		Method:  http.MethodGet,
		Path:    "/apps/" + app,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if httpclient.IsNotFound(err) {
		return nil, fmt.Errorf("fetch app %s: %w", app, ErrServiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch app %s: %w", app, err)
	}

	records, err := parseApplication(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch app %s: %w", app, httpclient.NewProtocolError(err, resp.Body))
	}
	return records, nil
}

// do executes one operation against the registry, failing over across
// servers on network and server-side errors. 4xx responses are returned
// immediately; they would fail identically everywhere.
func (c *Client) do(ctx context.Context, operation string, req httpclient.Request) (*httpclient.Response, error) {
	start := time.Now()
	resp, err := c.doFailover(ctx, operation, req)
	c.record(ctx, operation, err, time.Since(start))
	return resp, err
}

func (c *Client) doFailover(ctx context.Context, operation string, req httpclient.Request) (*httpclient.Response, error) {
	var lastErr error

	for i := 0; i < len(c.servers); i++ {
		server := c.currentServer()

		serverReq := req
		serverReq.Path = server + req.Path

		resp, err := c.http.Do(ctx, serverReq)
		if err == nil {
			return resp, nil
		}

		if !failoverWorthy(err) {
			return resp, err
		}

		lastErr = err
		c.log.Warn("registry server failed, trying next", logger.Fields(
			logger.FieldOperation, operation,
			logger.FieldServerURL, server,
			logger.FieldError, err.Error(),
		))
		c.advanceServer()

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrAllServersFailed, lastErr)
}

// failoverWorthy reports whether another server could plausibly succeed.
func failoverWorthy(err error) bool {
	if httpclient.IsNetwork(err) {
		return true
	}
	var he *httpclient.Error
	if errors.As(err, &he) && he.StatusCode >= 500 {
		return true
	}
	return false
}

func (c *Client) currentServer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.servers[c.idx]
}

func (c *Client) advanceServer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx = (c.idx + 1) % len(c.servers)
}

func (c *Client) record(ctx context.Context, operation string, err error, elapsed time.Duration) {
	outcome := observability.OutcomeSuccess
	switch {
	case err == nil:
	case httpclient.IsNotFound(err):
		outcome = observability.OutcomeNotFound
	case httpclient.IsNetwork(err):
		outcome = observability.OutcomeNetwork
	default:
		outcome = observability.OutcomeProtocol
	}
	c.metrics.RecordOperation(ctx, operation, outcome, elapsed)

	if err != nil {
		c.log.Warn("registry operation failed", logger.Fields(
			logger.FieldOperation, operation,
			logger.FieldStatus, outcome,
			logger.FieldError, err.Error(),
		))
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
