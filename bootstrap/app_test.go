package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/springkit/config"
	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/resilience"
)

// fakeRegistry is an in-memory registry server for end-to-end tests. It
// lists a CONFIG-SERVER instance pointing at configURL in its snapshot.
type fakeRegistry struct {
	registrations   atomic.Int32
	heartbeats      atomic.Int32
	deregistrations atomic.Int32
	configURL       string
	srv             *httptest.Server
}

func newFakeRegistry(configURL string) *fakeRegistry {
	f := &fakeRegistry{configURL: configURL}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			f.registrations.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			f.heartbeats.Add(1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			f.deregistrations.Add(1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(f.snapshotBody()))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	return f
}

func (f *fakeRegistry) snapshotBody() string {
	u, _ := url.Parse(f.configURL)
	host := u.Hostname()
	port := u.Port()
	return fmt.Sprintf(`{"applications":{"application":[{"name":"CONFIG-SERVER","instance":[{
        "instanceId":"config:%s:%s","app":"CONFIG-SERVER","hostName":"%s","ipAddr":"%s",
        "status":"UP","port":{"$":%s,"@enabled":"true"},
        "securePort":{"$":443,"@enabled":"false"}}]}]}}`,
		host, port, host, host, port)
}

func newFakeConfigServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/orders-service/") {
			t.Errorf("unexpected config path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":     "orders-service",
			"profiles": []string{"default"},
			"propertySources": []map[string]any{
				{"name": "orders-service.yml", "source": map[string]any{"greeting": "remote"}},
			},
		})
	}))
}

func testSettings(registryURL string) *config.Settings {
	s := &config.Settings{
		AppName:           "orders-service",
		Port:              8080,
		ServerURL:         registryURL,
		InstanceHostname:  "test-host",
		InstanceIP:        "10.0.0.5",
		FailFast:          true,
		HeartbeatInterval: time.Second,
		RefreshInterval:   time.Second,
	}
	s.ApplyDefaults()
	return s
}

func fastAppBackoff() resilience.Policy {
	return resilience.Policy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestApp_FullLifecycle(t *testing.T) {
	cfgSrv := newFakeConfigServer(t)
	defer cfgSrv.Close()
	reg := newFakeRegistry(cfgSrv.URL)
	defer reg.srv.Close()

	app, err := New(testSettings(reg.srv.URL),
		WithLogger(logger.Nop()),
		WithBackoff(fastAppBackoff()),
		WithMetadata(map[string]string{"zone": "test"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := reg.registrations.Load(); got != 1 {
		t.Errorf("registrations = %d, want 1", got)
	}
	if got := app.ConfigStore().Get("greeting"); got != "remote" {
		t.Errorf("remote config not loaded, greeting = %q", got)
	}
	if url, err := app.Discovery().ServiceURL("config-server"); err != nil || url == "" {
		t.Errorf("discovery lookup failed: %v", err)
	}
	if app.Instance().Metadata["zone"] != "test" {
		t.Error("option metadata not attached to the instance")
	}
	if app.Instance().Metadata["version"] == "" {
		t.Error("version metadata not attached to the instance")
	}

	for _, h := range app.Status(ctx) {
		if h.Status != "healthy" {
			t.Errorf("component %s = %s (%s)", h.Name, h.Status, h.Message)
		}
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := reg.deregistrations.Load(); got != 1 {
		t.Errorf("deregistrations = %d, want 1", got)
	}

	// Idempotent.
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if got := reg.deregistrations.Load(); got != 1 {
		t.Errorf("second Stop deregistered again: %d", got)
	}
}

func TestApp_FailFastRegistrationFailure(t *testing.T) {
	s := testSettings("http://127.0.0.1:1")
	s.RegisterMaxAttempts = 2

	app, err := New(s, WithLogger(logger.Nop()), WithBackoff(fastAppBackoff()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err == nil {
		t.Fatal("expected Start to fail with failFast and unreachable registry")
	}

	// Stop after a failed Start is safe.
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}

func TestApp_DegradedWithoutFailFast(t *testing.T) {
	s := testSettings("http://127.0.0.1:1")
	s.FailFast = false
	s.RegisterMaxAttempts = 2

	app, err := New(s, WithLogger(logger.Nop()), WithBackoff(fastAppBackoff()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start must degrade without failFast: %v", err)
	}

	// No registry presence: empty config, empty discovery, no heartbeat.
	if app.ConfigStore().Len() != 0 {
		t.Error("config store must stay empty in degraded mode")
	}
	if got := app.Discovery().Instances("config-server"); len(got) != 0 {
		t.Errorf("discovery = %v, want empty", got)
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestApp_DirectConfigURISkipsDiscovery(t *testing.T) {
	cfgSrv := newFakeConfigServer(t)
	defer cfgSrv.Close()
	reg := newFakeRegistry(cfgSrv.URL)
	defer reg.srv.Close()

	s := testSettings(reg.srv.URL)
	s.ConfigURI = cfgSrv.URL

	app, err := New(s, WithLogger(logger.Nop()), WithBackoff(fastAppBackoff()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = app.Stop(ctx) }()

	if got := app.ConfigStore().Get("greeting"); got != "remote" {
		t.Errorf("greeting = %q, want remote", got)
	}
}

func TestApp_StartIdempotent(t *testing.T) {
	cfgSrv := newFakeConfigServer(t)
	defer cfgSrv.Close()
	reg := newFakeRegistry(cfgSrv.URL)
	defer reg.srv.Close()

	app, err := New(testSettings(reg.srv.URL), WithLogger(logger.Nop()), WithBackoff(fastAppBackoff()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = app.Stop(ctx) }()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := reg.registrations.Load(); got != 1 {
		t.Errorf("registrations = %d, want 1", got)
	}
}

func TestApp_InvalidSettings(t *testing.T) {
	if _, err := New(&config.Settings{}); err == nil {
		t.Error("expected error for missing app name")
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	cfgSrv := newFakeConfigServer(t)
	defer cfgSrv.Close()
	reg := newFakeRegistry(cfgSrv.URL)
	defer reg.srv.Close()

	app, err := New(testSettings(reg.srv.URL), WithLogger(logger.Nop()), WithBackoff(fastAppBackoff()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	// Give Run a moment to start, then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := reg.deregistrations.Load(); got != 1 {
		t.Errorf("deregistrations = %d, want 1", got)
	}
}
