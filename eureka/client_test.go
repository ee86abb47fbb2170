package eureka

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{ServerURLs: urls, Timeout: 2 * time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func testInstance() *InstanceInfo {
	return NewInstanceInfo("orders", InstanceOptions{
		HostName: "orders-1",
		IPAddr:   "10.0.0.5",
		Port:     8080,
	})
}

func TestClient_Register(t *testing.T) {
	var gotBody registrationBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/eureka/apps/ORDERS" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/eureka/")
	inst := testInstance()
	if err := c.Register(context.Background(), inst); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if gotBody.Instance.InstanceID != inst.ID {
		t.Errorf("posted instanceId = %q, want %q", gotBody.Instance.InstanceID, inst.ID)
	}
}

func TestClient_Heartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Query().Get("status") != "UP" {
			t.Errorf("missing status query param")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Heartbeat(context.Background(), "ORDERS", "orders:a:8080"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}

func TestClient_Heartbeat_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Heartbeat(context.Background(), "ORDERS", "orders:a:8080")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestClient_Deregister(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		called.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Deregister(context.Background(), "ORDERS", "orders:a:8080"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if !called.Load() {
		t.Error("DELETE never reached the server")
	}
}

func TestClient_UpdateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps/ORDERS/orders:a:8080/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("value") != "OUT_OF_SERVICE" {
			t.Errorf("value = %q", r.URL.Query().Get("value"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.UpdateStatus(context.Background(), "ORDERS", "orders:a:8080", StatusOutOfService); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestClient_FetchApps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		_, _ = w.Write([]byte(appsBodyMulti))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	snap, err := c.FetchApps(context.Background())
	if err != nil {
		t.Fatalf("FetchApps: %v", err)
	}
	if len(snap.Apps) != 2 {
		t.Errorf("applications = %d, want 2", len(snap.Apps))
	}
}

func TestClient_FetchApps_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.FetchApps(context.Background()); err == nil {
		t.Error("expected protocol error for malformed body")
	}
}

func TestClient_FetchApp_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchApp(context.Background(), "MISSING")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestClient_FailoverToSecondServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// First server unreachable; the operation must still succeed.
	c := newTestClient(t, "http://127.0.0.1:1", srv.URL)
	if err := c.Heartbeat(context.Background(), "ORDERS", "id"); err != nil {
		t.Fatalf("Heartbeat with failover: %v", err)
	}
}

func TestClient_FailoverOnServerError(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	c := newTestClient(t, bad.URL, good.URL)
	if err := c.Heartbeat(context.Background(), "ORDERS", "id"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if badCalls.Load() != 1 {
		t.Errorf("bad server called %d times, want 1", badCalls.Load())
	}
}

func TestClient_NoFailoverOnClientError(t *testing.T) {
	var secondCalled atomic.Bool
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer first.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalled.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer second.Close()

	c := newTestClient(t, first.URL, second.URL)
	if err := c.Heartbeat(context.Background(), "ORDERS", "id"); err == nil {
		t.Fatal("expected error")
	}
	if secondCalled.Load() {
		t.Error("4xx must not fail over to another server")
	}
}

func TestClient_AllServersFail(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "http://127.0.0.1:2")
	err := c.Heartbeat(context.Background(), "ORDERS", "id")
	if !errors.Is(err, ErrAllServersFailed) {
		t.Errorf("expected ErrAllServersFailed, got %v", err)
	}
}

func TestClient_StickyServerAfterFailover(t *testing.T) {
	var goodCalls atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	c := newTestClient(t, "http://127.0.0.1:1", good.URL)
	ctx := context.Background()

	// First call fails over; second call goes straight to the good server.
	if err := c.Heartbeat(ctx, "ORDERS", "id"); err != nil {
		t.Fatalf("first heartbeat: %v", err)
	}
	if err := c.Heartbeat(ctx, "ORDERS", "id"); err != nil {
		t.Fatalf("second heartbeat: %v", err)
	}
	if goodCalls.Load() != 2 {
		t.Errorf("good server calls = %d, want 2", goodCalls.Load())
	}
}

func TestNewClient_NoServers(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, nil, nil); err == nil {
		t.Error("expected error for empty server list")
	}
}
