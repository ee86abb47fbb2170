package eureka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InstanceRecord is one discovered instance as seen in a registry snapshot.
type InstanceRecord struct {
	InstanceID string
	App        string
	HostName   string
	IPAddr     string
	Port       int
	SecurePort int
	Secure     bool
	Status     Status
	Metadata   map[string]string
}

// BaseURL returns the instance endpoint, scheme chosen by the secure flag.
func (r InstanceRecord) BaseURL() string {
	if r.Secure {
		return fmt.Sprintf("https://%s:%d", r.HostName, r.SecurePort)
	}
	return fmt.Sprintf("http://%s:%d", r.HostName, r.Port)
}

// Snapshot is an immutable point-in-time view of the registry. Instances
// are keyed by uppercased application name in registry order.
type Snapshot struct {
	Apps      map[string][]InstanceRecord
	FetchedAt time.Time
}

// EmptySnapshot returns a snapshot with no applications, used before the
// first successful fetch.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Apps: map[string][]InstanceRecord{}}
}

// Instances returns the instances of an application, case-insensitive.
func (s *Snapshot) Instances(app string) []InstanceRecord {
	return s.Apps[strings.ToUpper(app)]
}

// --- registry response wire shape ---

// The registry encodes a single element as a bare object instead of a
// one-element array, so application and instance lists need lenient
// decoding.

type wireAppsResponse struct {
	Applications struct {
		Application appListJSON `json:"application"`
	} `json:"applications"`
}

type wireAppResponse struct {
	Application wireApplication `json:"application"`
}

type wireApplication struct {
	Name     string           `json:"name"`
	Instance instanceListJSON `json:"instance"`
}

type appListJSON []wireApplication

func (l *appListJSON) UnmarshalJSON(data []byte) error {
	var many []wireApplication
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one wireApplication
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = appListJSON{one}
	return nil
}

type instanceListJSON []wireDiscoveredInstance

func (l *instanceListJSON) UnmarshalJSON(data []byte) error {
	var many []wireDiscoveredInstance
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one wireDiscoveredInstance
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = instanceListJSON{one}
	return nil
}

type wireDiscoveredInstance struct {
	InstanceID string            `json:"instanceId"`
	App        string            `json:"app"`
	HostName   string            `json:"hostName"`
	IPAddr     string            `json:"ipAddr"`
	Status     string            `json:"status"`
	Port       wirePortJSON      `json:"port"`
	SecurePort wirePortJSON      `json:"securePort"`
	Metadata   map[string]string `json:"metadata"`
}

// wirePortJSON accepts both the wrapped object form and a bare number.
type wirePortJSON struct {
	Value   int
	Enabled bool
}

func (p *wirePortJSON) UnmarshalJSON(data []byte) error {
	var bare int
	if err := json.Unmarshal(data, &bare); err == nil {
		p.Value = bare
		p.Enabled = true
		return nil
	}
	var wrapped struct {
		Value   int    `json:"$"`
		Enabled string `json:"@enabled"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	p.Value = wrapped.Value
	p.Enabled = wrapped.Enabled == "true"
	return nil
}

func (w wireDiscoveredInstance) record(app string) InstanceRecord {
	name := w.App
	if name == "" {
		name = app
	}
	return InstanceRecord{
		InstanceID: w.InstanceID,
		App:        strings.ToUpper(name),
		HostName:   w.HostName,
		IPAddr:     w.IPAddr,
		Port:       w.Port.Value,
		SecurePort: w.SecurePort.Value,
		Secure:     w.SecurePort.Enabled && !w.Port.Enabled,
		Status:     Status(w.Status),
		Metadata:   w.Metadata,
	}
}

// parseSnapshot decodes a GET /apps response body.
func parseSnapshot(body []byte) (*Snapshot, error) {
	var resp wireAppsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}

	snap := &Snapshot{
		Apps:      make(map[string][]InstanceRecord, len(resp.Applications.Application)),
		FetchedAt: time.Now(),
	}
	for _, app := range resp.Applications.Application {
		name := strings.ToUpper(app.Name)
		records := make([]InstanceRecord, 0, len(app.Instance))
		for _, inst := range app.Instance {
			records = append(records, inst.record(name))
		}
		snap.Apps[name] = records
	}
	return snap, nil
}

// parseApplication decodes a GET /apps/{app} response body.
func parseApplication(body []byte) ([]InstanceRecord, error) {
	var resp wireAppResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}

	name := strings.ToUpper(resp.Application.Name)
	records := make([]InstanceRecord, 0, len(resp.Application.Instance))
	for _, inst := range resp.Application.Instance {
		records = append(records, inst.record(name))
	}
	return records, nil
}
