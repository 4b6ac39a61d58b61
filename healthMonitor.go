package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/Financial-Times/go-logger"
)

// probe issues one lightweight liveness call against the endpoint's health
// path and records the outcome in the health table. The demo endpoint is
// always healthy and never touches the network.
func (c *Client) probe(endpoint Endpoint) bool {
	if endpoint.isDemo() {
		return true
	}

	err := c.checkEndpointHealth(endpoint)
	if err != nil {
		log.WithError(err).Debugf("Probe failed for endpoint %s", endpoint.Name)
		c.recordHealth(endpoint.Name, false, err.Error())
		return false
	}

	c.recordHealth(endpoint.Name, true, "")
	return true
}

func (c *Client) checkEndpointHealth(endpoint Endpoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.BaseURL+endpoint.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("cannot construct probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Errorf("Cannot close response body reader.")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned non-success status (%v)", resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// probeAll checks every non-demo endpoint concurrently, joins the results and
// triggers a mode re-evaluation. Each probe is timeboxed on its own, so one
// slow endpoint cannot stall the sweep.
func (c *Client) probeAll() map[string]bool {
	results := make(map[string]bool)
	var resultsLock sync.Mutex
	var wg sync.WaitGroup

	for _, endpoint := range c.registry {
		if endpoint.isDemo() {
			continue
		}

		wg.Add(1)
		go func(endpoint Endpoint) {
			defer wg.Done()
			healthy := c.probe(endpoint)

			resultsLock.Lock()
			results[endpoint.Name] = healthy
			resultsLock.Unlock()
		}(endpoint)
	}

	wg.Wait()
	c.reevaluateMode(results)

	return results
}

// maintainHealth runs probe sweeps on a fixed interval until Stop. Sweeps are
// suspended while the client is offline; the reconnect signal resumes them.
func (c *Client) maintainHealth() {
	ticker := time.NewTicker(c.cfg.ProbeInterval)
	defer ticker.Stop()

	if c.currentMode() != ModeOffline {
		c.probeAll()
	}

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if c.currentMode() == ModeOffline {
				continue
			}
			c.probeAll()
		}
	}
}
