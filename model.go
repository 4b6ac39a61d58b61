package client

import (
	"sync"
	"time"
)

// Context carries the deployment signals used to decide which endpoints are
// candidates for the chain. It is built once by the host process and passed to
// New, so candidate selection stays a pure function of its fields.
type Context struct {
	DeploymentKind string
	IsDevelopment  bool
}

// Endpoint is one candidate backend location. Lower priority values are tried
// first. The registry is immutable once built.
type Endpoint struct {
	Name        string
	BaseURL     string
	Priority    int
	HealthPath  string
	isCandidate func(Context) bool
}

func (e Endpoint) isDemo() bool {
	return e.Name == demoEndpointName
}

// Mode is the connectivity state of the client. Exactly one Mode is current at
// any instant.
type Mode int

const (
	ModeOnline Mode = iota
	ModeOffline
	ModeDemo
)

func (m Mode) String() string {
	switch m {
	case ModeOnline:
		return "online"
	case ModeOffline:
		return "offline"
	case ModeDemo:
		return "demo"
	}

	return "unknown"
}

type endpointHealth struct {
	healthy     bool
	known       bool
	lastChecked time.Time
	lastError   string
}

type healthTable struct {
	sync.RWMutex
	m map[string]endpointHealth
}

// RequestOptions tunes one logical call. The zero value means a plain GET with
// the client defaults.
type RequestOptions struct {
	Method                 string
	Body                   []byte
	Headers                map[string]string
	TTL                    time.Duration
	NoCache                bool
	Timeout                time.Duration
	MaxAttemptsPerEndpoint int
}

// EndpointStatus is one row of the diagnostics health table.
type EndpointStatus struct {
	Name        string `json:"name"`
	BaseURL     string `json:"baseURL"`
	Priority    int    `json:"priority"`
	Health      string `json:"health"`
	LastChecked string `json:"lastChecked,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Status is the diagnostics snapshot returned by GetStatus.
type Status struct {
	Mode           string           `json:"mode"`
	ActiveEndpoint string           `json:"activeEndpoint"`
	Endpoints      []EndpointStatus `json:"endpoints"`
	CacheSize      int              `json:"cacheSize"`
}

// MalformedRequestError is the only error class surfaced to callers: invalid
// path or options. Transport and endpoint failures are absorbed by retry and
// fallback instead.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}
