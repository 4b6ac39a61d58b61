package client

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/Financial-Times/go-logger"
)

type resolvedOptions struct {
	method      string
	body        []byte
	headers     map[string]string
	ttl         time.Duration
	noCache     bool
	timeout     time.Duration
	maxAttempts int
}

func (o resolvedOptions) cacheable() bool {
	if o.noCache || o.ttl <= 0 {
		return false
	}

	return o.method == http.MethodGet || o.method == http.MethodHead
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func (c *Client) resolveOptions(path string, opts *RequestOptions) (resolvedOptions, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return resolvedOptions{}, &MalformedRequestError{Reason: fmt.Sprintf("path %q must start with /", path)}
	}

	resolved := resolvedOptions{
		method:      http.MethodGet,
		ttl:         c.cfg.DefaultTTL,
		timeout:     c.cfg.RequestTimeout,
		maxAttempts: c.cfg.MaxAttemptsPerEndpoint,
	}
	if opts == nil {
		return resolved, nil
	}

	if opts.Method != "" {
		resolved.method = strings.ToUpper(opts.Method)
	}
	if !allowedMethods[resolved.method] {
		return resolvedOptions{}, &MalformedRequestError{Reason: fmt.Sprintf("unsupported method %q", opts.Method)}
	}
	if opts.TTL < 0 || opts.Timeout < 0 || opts.MaxAttemptsPerEndpoint < 0 {
		return resolvedOptions{}, &MalformedRequestError{Reason: "ttl, timeout and maxAttemptsPerEndpoint must not be negative"}
	}

	resolved.body = opts.Body
	resolved.headers = opts.Headers
	resolved.noCache = opts.NoCache
	if opts.TTL != 0 {
		resolved.ttl = opts.TTL
	}
	if opts.Timeout != 0 {
		resolved.timeout = opts.Timeout
	}
	if opts.MaxAttemptsPerEndpoint != 0 {
		resolved.maxAttempts = opts.MaxAttemptsPerEndpoint
	}

	return resolved, nil
}

// cacheKey is a deterministic signature of the logical path and the options
// that shape the response. The key starts with the path so prefix patterns
// passed to Invalidate line up with logical resources.
func cacheKey(path string, o resolvedOptions) string {
	h := fnv.New64a()
	h.Write(o.body)

	headerNames := make([]string, 0, len(o.headers))
	for name := range o.headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)
	for _, name := range headerNames {
		fmt.Fprintf(h, "%s=%s;", name, o.headers[name])
	}

	return fmt.Sprintf("%s|%s|%x", path, o.method, h.Sum64())
}

// Request executes one logical call: cache first, then the endpoint chain in
// priority order with per-endpoint retries, then the synthetic data provider.
// It always returns a payload unless the path or options are malformed.
func (c *Client) Request(path string, opts *RequestOptions) ([]byte, error) {
	resolved, err := c.resolveOptions(path, opts)
	if err != nil {
		return nil, err
	}

	key := cacheKey(path, resolved)
	if resolved.cacheable() {
		if payload, ok := c.cache.get(key, resolved.ttl); ok {
			return payload, nil
		}
	}

	for _, endpoint := range c.registry {
		if endpoint.isDemo() {
			continue
		}

		// A connectivity signal is authoritative even mid-walk: pending
		// calls resolve synthetically instead of hitting the network.
		if c.currentMode() != ModeOnline {
			return demoLookup(path), nil
		}

		payload, err := c.tryEndpoint(endpoint, path, resolved)
		if err != nil {
			log.WithError(err).Warnf("Endpoint %s exhausted for %s %s, advancing along the chain", endpoint.Name, resolved.method, path)
			c.recordHealth(endpoint.Name, false, err.Error())
			continue
		}

		c.recordHealth(endpoint.Name, true, "")
		c.adoptEndpoint(endpoint)
		if resolved.cacheable() {
			c.cache.set(key, payload)
		}

		return payload, nil
	}

	c.enterDemoMode("every endpoint in the chain is exhausted")
	return demoLookup(path), nil
}

// tryEndpoint attempts the live call up to maxAttempts times with exponential
// backoff between attempts, as a bounded loop rather than recursion.
func (c *Client) tryEndpoint(endpoint Endpoint, path string, o resolvedOptions) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		payload, err := c.doAttempt(endpoint, path, o)
		if err == nil {
			if attempt > 1 {
				log.Infof("Request %s %s succeeded on endpoint %s after %d attempts", o.method, path, endpoint.Name, attempt)
			}
			return payload, nil
		}

		lastErr = err
		log.WithError(err).Debugf("Attempt %d/%d failed for %s %s on endpoint %s", attempt, o.maxAttempts, o.method, path, endpoint.Name)

		if attempt < o.maxAttempts {
			time.Sleep(backoffDelay(attempt, c.cfg.InitialDelay, c.cfg.BackoffFactor, c.cfg.MaxDelay))
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", o.maxAttempts, lastErr)
}

func (c *Client) doAttempt(endpoint Endpoint, path string, o resolvedOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var body io.Reader
	if len(o.body) > 0 {
		body = bytes.NewReader(o.body)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, endpoint.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("cannot construct request: %w", err)
	}
	for name, value := range o.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Errorf("Cannot close response body reader.")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("endpoint returned non-success status (%v)", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read response body: %w", err)
	}

	return payload, nil
}

// backoffDelay computes min(initial * factor^(attempt-1), max).
func backoffDelay(attempt int, initial time.Duration, factor float64, max time.Duration) time.Duration {
	delay := float64(initial) * math.Pow(factor, float64(attempt-1))
	if delay > float64(max) {
		delay = float64(max)
	}

	return time.Duration(delay)
}
