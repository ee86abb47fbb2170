package eureka

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skillsenselab/springkit/logger"
	"github.com/skillsenselab/springkit/periodic"
)

// Cache holds the latest registry snapshot for discovery lookups. Reads
// never block on I/O: before the first successful refresh they see an
// empty snapshot, and a failed refresh leaves the previous snapshot in
// place.
type Cache struct {
	client   *Client
	snapshot atomic.Value // *Snapshot
	runner   *periodic.Runner
	log      *logger.Logger
}

// NewCache creates a discovery cache refreshing every refreshInterval.
// The periodic refresh does not run until Start is called; Refresh can be
// invoked directly for a synchronous initial fill.
func NewCache(client *Client, refreshInterval time.Duration, log *logger.Logger) *Cache {
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Cache{
		client: client,
		log:    log.WithComponent("eureka.cache"),
	}
	c.snapshot.Store(EmptySnapshot())
	c.runner = periodic.NewRunner("discovery-refresh", refreshInterval, func(ctx context.Context) time.Duration {
		_ = c.Refresh(ctx)
		return 0
	}, log)
	return c
}

// Start begins periodic refreshing. Idempotent.
func (c *Cache) Start() {
	c.runner.Start()
}

// Stop halts periodic refreshing and waits for an in-flight refresh.
func (c *Cache) Stop() {
	c.runner.Stop()
}

// Refresh fetches a new snapshot and swaps it in. On failure the previous
// snapshot stays current and the error is returned.
func (c *Cache) Refresh(ctx context.Context) error {
	snap, err := c.client.FetchApps(ctx)
	if err != nil {
		c.log.Warn("snapshot refresh failed, keeping previous", logger.Fields(
			logger.FieldError, err.Error(),
		))
		return err
	}

	c.snapshot.Store(snap)
	c.log.Debug("snapshot refreshed", logger.Fields(
		"applications", len(snap.Apps),
	))
	return nil
}

// Snapshot returns the current snapshot. Never nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load().(*Snapshot)
}

// Instances returns the UP instances of a service, case-insensitive, in
// snapshot order. Unknown services yield an empty slice, not an error.
func (c *Cache) Instances(service string) []InstanceRecord {
	all := c.Snapshot().Instances(strings.ToUpper(service))
	up := make([]InstanceRecord, 0, len(all))
	for _, r := range all {
		if r.Status == StatusUp {
			up = append(up, r)
		}
	}
	return up
}

// ServiceURL returns the base URL of the first UP instance of a service.
// Unknown services yield ErrServiceNotFound; a known service with no UP
// instance yields ErrNoInstances.
func (c *Cache) ServiceURL(service string) (string, error) {
	all := c.Snapshot().Instances(strings.ToUpper(service))
	if len(all) == 0 {
		return "", fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}
	for _, r := range all {
		if r.Status == StatusUp {
			return r.BaseURL(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoInstances, service)
}
