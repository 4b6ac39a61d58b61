package client

import (
	"fmt"

	log "github.com/Financial-Times/go-logger"
)

func (c *Client) currentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// adoptEndpoint records a live success against an endpoint. A disconnect
// signal is authoritative, so an in-flight success never pulls the client out
// of offline mode.
func (c *Client) adoptEndpoint(endpoint Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeOffline {
		return
	}

	if c.mode != ModeOnline || c.active.Name != endpoint.Name {
		log.Infof("Switching to online mode with active endpoint %s", endpoint.Name)
	}
	c.mode = ModeOnline
	c.active = endpoint
}

// enterDemoMode routes all subsequent calls to the synthetic data provider
// until a probe sweep finds a healthy endpoint again.
func (c *Client) enterDemoMode(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeOffline || c.mode == ModeDemo {
		return
	}

	log.Warnf("Entering demo mode: %s", reason)
	c.mode = ModeDemo
	c.active = c.registry[len(c.registry)-1]
}

// SetConnectivity is the single entry point for connectivity signals. A
// disconnect suspends all network activity; a reconnect walks the chain for
// the first healthy endpoint.
func (c *Client) SetConnectivity(connected bool) {
	c.mu.Lock()
	if !connected {
		if c.mode != ModeOffline {
			log.Warnf("Connectivity lost, entering offline mode")
			c.mode = ModeOffline
		}
		c.mu.Unlock()
		return
	}

	if c.mode != ModeOffline {
		c.mu.Unlock()
		return
	}

	log.Infof("Connectivity restored, searching for a working endpoint")
	c.mode = ModeOnline
	c.mu.Unlock()

	c.findWorkingEndpoint()
}

// findWorkingEndpoint probes the chain in priority order and adopts the first
// healthy endpoint, falling back to demo mode when none responds.
func (c *Client) findWorkingEndpoint() {
	for _, endpoint := range c.registry {
		if endpoint.isDemo() {
			continue
		}
		if c.probe(endpoint) {
			c.adoptEndpoint(endpoint)
			return
		}
	}

	c.enterDemoMode("no endpoint responded to probes")
}

// reevaluateMode applies the outcome of a probe sweep. Offline mode is left
// untouched; the connectivity signal owns that transition.
func (c *Client) reevaluateMode(results map[string]bool) {
	healthyName := ""
	for _, endpoint := range c.registry {
		if endpoint.isDemo() {
			continue
		}
		if results[endpoint.Name] {
			healthyName = endpoint.Name
			break
		}
	}

	if healthyName == "" {
		c.enterDemoMode("health sweep found no healthy endpoint")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeDemo {
		return
	}

	endpoint, _ := c.endpointByName(healthyName)
	log.Infof("Endpoint %s is healthy again, leaving demo mode", healthyName)
	c.mode = ModeOnline
	c.active = endpoint
}

// SwitchEndpoint is a manual diagnostics override: it pins the active
// endpoint to the named one and puts the client online (or in demo mode when
// the demo endpoint is requested).
func (c *Client) SwitchEndpoint(name string) error {
	endpoint, ok := c.endpointByName(name)
	if !ok {
		return fmt.Errorf("no endpoint with name %s in the chain", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if endpoint.isDemo() {
		c.mode = ModeDemo
	} else {
		c.mode = ModeOnline
	}
	c.active = endpoint
	log.Infof("Manually switched to endpoint %s", name)

	return nil
}
