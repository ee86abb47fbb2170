package eureka

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the registry-visible state of an instance.
type Status string

const (
	StatusStarting     Status = "STARTING"
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusUnknown      Status = "UNKNOWN"
)

const dataCenterClass = "com.netflix.appinfo.InstanceInfo$DefaultDataCenterInfo"

// InstanceInfo describes this process to the registry. Exactly one
// InstanceInfo exists per process run; the ID is immutable and Status is
// the only mutable field.
type InstanceInfo struct {
	// App is the uppercased application name.
	App string
	// ID uniquely identifies this instance for this process run.
	ID string
	// HostName is the advertised host (the IP when prefer-ip is set).
	HostName string
	// IPAddr is the instance IP address.
	IPAddr string
	// VIPAddress is the logical address peers discover the app under.
	VIPAddress string

	Port       int
	SecurePort int
	Secure     bool

	HomePageURL    string
	StatusPageURL  string
	HealthCheckURL string

	// RenewalInterval and LeaseDuration form the registry lease.
	RenewalInterval time.Duration
	LeaseDuration   time.Duration

	Metadata map[string]string

	status atomic.Value // Status
}

// InstanceOptions configures NewInstanceInfo. Zero values auto-detect.
type InstanceOptions struct {
	InstanceID string
	HostName   string
	IPAddr     string
	Port       int
	SecurePort int
	Secure     bool
	// PreferIP advertises the IP address as the hostname.
	PreferIP        bool
	Metadata        map[string]string
	RenewalInterval time.Duration
	LeaseDuration   time.Duration
}

// NewInstanceInfo builds the instance identity for this process run.
// Hostname and IP are auto-detected when not supplied; the instance ID
// carries a random suffix so restarts register as a fresh instance.
func NewInstanceInfo(app string, opts InstanceOptions) *InstanceInfo {
	host := opts.HostName
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "localhost"
		}
	}

	ip := opts.IPAddr
	if ip == "" {
		ip = resolveIP(host)
	}
	if opts.PreferIP {
		host = ip
	}

	port := opts.Port
	if port == 0 {
		port = 8080
	}
	securePort := opts.SecurePort
	if securePort == 0 {
		securePort = 443
	}

	id := opts.InstanceID
	if id == "" {
		id = fmt.Sprintf("%s:%s:%d:%s", strings.ToLower(app), host, port, uuid.NewString()[:8])
	}

	renewal := opts.RenewalInterval
	if renewal <= 0 {
		renewal = 30 * time.Second
	}
	lease := opts.LeaseDuration
	if lease <= 0 {
		lease = 90 * time.Second
	}

	scheme := "http"
	advertisedPort := port
	if opts.Secure {
		scheme = "https"
		advertisedPort = securePort
	}
	baseURL := fmt.Sprintf("%s://%s:%d", scheme, host, advertisedPort)

	info := &InstanceInfo{
		App:             strings.ToUpper(app),
		ID:              id,
		HostName:        host,
		IPAddr:          ip,
		VIPAddress:      strings.ToLower(app),
		Port:            port,
		SecurePort:      securePort,
		Secure:          opts.Secure,
		HomePageURL:     baseURL,
		StatusPageURL:   baseURL + "/actuator/info",
		HealthCheckURL:  baseURL + "/actuator/health",
		RenewalInterval: renewal,
		LeaseDuration:   lease,
		Metadata:        opts.Metadata,
	}
	info.status.Store(StatusStarting)
	return info
}

// Status returns the current instance status.
func (i *InstanceInfo) Status() Status {
	return i.status.Load().(Status)
}

// SetStatus atomically updates the instance status.
func (i *InstanceInfo) SetStatus(s Status) {
	i.status.Store(s)
}

// resolveIP resolves the first IPv4 address of host, falling back to the
// loopback address when resolution fails.
func resolveIP(host string) string {
	addrs, err := net.LookupIP(host)
	if err == nil {
		for _, a := range addrs {
			if v4 := a.To4(); v4 != nil && !v4.IsLoopback() {
				return v4.String()
			}
		}
		for _, a := range addrs {
			if v4 := a.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return "127.0.0.1"
}

// --- registry wire shape ---

type wirePort struct {
	Value   int    `json:"$"`
	Enabled string `json:"@enabled"`
}

type wireDataCenterInfo struct {
	Class string `json:"@class"`
	Name  string `json:"name"`
}

type wireLeaseInfo struct {
	RenewalIntervalInSecs int `json:"renewalIntervalInSecs"`
	DurationInSecs        int `json:"durationInSecs"`
}

type wireInstance struct {
	InstanceID       string             `json:"instanceId"`
	App              string             `json:"app"`
	HostName         string             `json:"hostName"`
	IPAddr           string             `json:"ipAddr"`
	VIPAddress       string             `json:"vipAddress"`
	SecureVIPAddress string             `json:"secureVipAddress"`
	Status           string             `json:"status"`
	OverriddenStatus string             `json:"overriddenStatus"`
	Port             wirePort           `json:"port"`
	SecurePort       wirePort           `json:"securePort"`
	HomePageURL      string             `json:"homePageUrl,omitempty"`
	StatusPageURL    string             `json:"statusPageUrl,omitempty"`
	HealthCheckURL   string             `json:"healthCheckUrl,omitempty"`
	DataCenterInfo   wireDataCenterInfo `json:"dataCenterInfo"`
	LeaseInfo        wireLeaseInfo      `json:"leaseInfo"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
}

type registrationBody struct {
	Instance wireInstance `json:"instance"`
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// wireBody renders the registration payload in the registry's JSON shape.
func (i *InstanceInfo) wireBody() registrationBody {
	return registrationBody{Instance: wireInstance{
		InstanceID:       i.ID,
		App:              i.App,
		HostName:         i.HostName,
		IPAddr:           i.IPAddr,
		VIPAddress:       i.VIPAddress,
		SecureVIPAddress: i.VIPAddress,
		Status:           string(i.Status()),
		OverriddenStatus: string(StatusUnknown),
		Port:             wirePort{Value: i.Port, Enabled: boolString(!i.Secure)},
		SecurePort:       wirePort{Value: i.SecurePort, Enabled: boolString(i.Secure)},
		HomePageURL:      i.HomePageURL,
		StatusPageURL:    i.StatusPageURL,
		HealthCheckURL:   i.HealthCheckURL,
		DataCenterInfo:   wireDataCenterInfo{Class: dataCenterClass, Name: "MyOwn"},
		LeaseInfo: wireLeaseInfo{
			RenewalIntervalInSecs: int(i.RenewalInterval.Seconds()),
			DurationInSecs:        int(i.LeaseDuration.Seconds()),
		},
		Metadata: i.Metadata,
	}}
}
