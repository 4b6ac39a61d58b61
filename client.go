package client

import (
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/Financial-Times/go-logger"
)

const (
	defaultTTL             = 5 * time.Minute
	defaultRequestTimeout  = 10 * time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultProbeInterval   = 30 * time.Second
	defaultMaxAttempts     = 3
	defaultInitialDelay    = 1 * time.Second
	defaultBackoffFactor   = 2
	defaultMaxDelay        = 10 * time.Second
	defaultCacheCeiling    = 256
	retentionTTLMultiplier = 10
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ConnectivitySource emits discrete connected/disconnected events. The client
// subscribes once, at Start.
type ConnectivitySource interface {
	Events() <-chan bool
}

// Config tunes a Client. The zero value is usable; applyDefaults fills in
// every unset field.
type Config struct {
	Endpoints              []Endpoint
	HTTPClient             httpClient
	Connectivity           ConnectivitySource
	DefaultTTL             time.Duration
	RequestTimeout         time.Duration
	ProbeTimeout           time.Duration
	ProbeInterval          time.Duration
	MaxAttemptsPerEndpoint int
	InitialDelay           time.Duration
	BackoffFactor          float64
	MaxDelay               time.Duration
	CacheCeiling           int
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
				Dial: (&net.Dialer{
					KeepAlive: 30 * time.Second,
				}).Dial,
			},
		}
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.MaxAttemptsPerEndpoint == 0 {
		cfg.MaxAttemptsPerEndpoint = defaultMaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = defaultBackoffFactor
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.CacheCeiling == 0 {
		cfg.CacheCeiling = defaultCacheCeiling
	}
}

// Client is the resilient request client. One instance per process is
// constructed at application start and injected into the modules that need
// backend access; there is no package-level singleton.
type Client struct {
	registry   []Endpoint
	cache      *requestCache
	health     *healthTable
	httpClient httpClient
	cfg        Config

	// mu is the single mutation point for mode and active endpoint.
	mu     sync.Mutex
	mode   Mode
	active Endpoint

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds the endpoint chain for the given context and returns a client in
// Online mode pointing optimistically at the highest-priority candidate.
func New(ctx Context, cfg Config) *Client {
	cfg.applyDefaults()

	registry := buildRegistry(ctx, cfg.Endpoints)

	c := &Client{
		registry:   registry,
		cache:      newRequestCache(cfg.CacheCeiling, retentionTTLMultiplier*cfg.DefaultTTL),
		health:     &healthTable{m: make(map[string]endpointHealth)},
		httpClient: cfg.HTTPClient,
		cfg:        cfg,
		stop:       make(chan struct{}),
	}

	// Before the first probe every endpoint is unknown, so the first in
	// priority order is adopted optimistically. A chain with only the demo
	// endpoint starts in demo mode straight away.
	first := registry[0]
	if first.isDemo() {
		c.mode = ModeDemo
	} else {
		c.mode = ModeOnline
	}
	c.active = first

	log.Infof("Client initialised with %d endpoints, active endpoint is %s", len(registry), first.Name)

	return c
}

// Start launches the periodic health monitor and, when a connectivity source
// is configured, the signal subscription. Stop terminates both.
func (c *Client) Start() {
	go c.maintainHealth()
	if c.cfg.Connectivity != nil {
		go c.watchConnectivity(c.cfg.Connectivity.Events())
	}
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) watchConnectivity(events <-chan bool) {
	for {
		select {
		case <-c.stop:
			return
		case connected, ok := <-events:
			if !ok {
				return
			}
			c.SetConnectivity(connected)
		}
	}
}

// GetStatus returns the current diagnostics snapshot: mode, active endpoint,
// per-endpoint health table and cache size.
func (c *Client) GetStatus() Status {
	c.mu.Lock()
	mode := c.mode
	active := c.active
	c.mu.Unlock()

	c.health.RLock()
	defer c.health.RUnlock()

	var endpoints []EndpointStatus
	for _, endpoint := range c.registry {
		if endpoint.isDemo() {
			continue
		}

		row := EndpointStatus{
			Name:     endpoint.Name,
			BaseURL:  endpoint.BaseURL,
			Priority: endpoint.Priority,
			Health:   "unknown",
		}
		if health, ok := c.health.m[endpoint.Name]; ok && health.known {
			if health.healthy {
				row.Health = "healthy"
			} else {
				row.Health = "unhealthy"
			}
			row.LastChecked = health.lastChecked.Format(time.RFC3339)
			row.LastError = health.lastError
		}

		endpoints = append(endpoints, row)
	}

	return Status{
		Mode:           mode.String(),
		ActiveEndpoint: active.Name,
		Endpoints:      endpoints,
		CacheSize:      c.cache.size(),
	}
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.clear()
	log.Infof("Request cache cleared")
}

// Invalidate removes cached responses matching the pattern. Collaborator
// modules call this after any mutating request so stale reads are not served.
func (c *Client) Invalidate(pattern string) int {
	removed := c.cache.invalidate(pattern)
	log.Debugf("Invalidated %d cache entries for pattern %s", removed, pattern)
	return removed
}

func (c *Client) recordHealth(name string, healthy bool, lastError string) {
	c.health.Lock()
	c.health.m[name] = endpointHealth{
		healthy:     healthy,
		known:       true,
		lastChecked: time.Now(),
		lastError:   lastError,
	}
	c.health.Unlock()
}

func (c *Client) endpointByName(name string) (Endpoint, bool) {
	for _, endpoint := range c.registry {
		if endpoint.Name == name {
			return endpoint, true
		}
	}

	return Endpoint{}, false
}
