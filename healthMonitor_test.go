package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHealthyEndpoint(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "http://local.test/api/health", req.URL.String())
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(bytes.NewBufferString(`{"status":"ok"}`)),
			}, nil
		},
	}
	c := newTestClient(testEndpoints(), httpClient)

	assert.True(t, c.probe(c.registry[0]))

	c.health.RLock()
	defer c.health.RUnlock()
	health := c.health.m["local"]
	assert.True(t, health.known)
	assert.True(t, health.healthy)
	assert.Empty(t, health.lastError)
}

func TestProbeUnhealthyOnTransportError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(*http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	c := newTestClient(testEndpoints(), httpClient)

	assert.False(t, c.probe(c.registry[0]))

	c.health.RLock()
	defer c.health.RUnlock()
	health := c.health.m["local"]
	assert.True(t, health.known)
	assert.False(t, health.healthy)
	assert.Contains(t, health.lastError, "connection refused")
}

func TestProbeUnhealthyOnNonSuccessStatus(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 503,
				Body:       io.NopCloser(bytes.NewBufferString(``)),
			}, nil
		},
	}
	c := newTestClient(testEndpoints(), httpClient)

	assert.False(t, c.probe(c.registry[0]))
}

func TestProbeDemoEndpointNeverTouchesNetwork(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(*http.Request) (*http.Response, error) {
			t.Fatal("the demo endpoint must not be probed over the network")
			return nil, nil
		},
	}
	c := newTestClient(testEndpoints(), httpClient)

	demo := c.registry[len(c.registry)-1]
	require.True(t, demo.isDemo())
	assert.True(t, c.probe(demo))

	c.health.RLock()
	defer c.health.RUnlock()
	_, recorded := c.health.m[demoEndpointName]
	assert.False(t, recorded, "demo endpoint is never written to the health table")
}

func TestProbeAllRecordsEveryEndpoint(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = failingResponse()
	httpClient.respond["prod.test"] = okResponse(`{"status":"ok"}`)

	c := newTestClient(testEndpoints(), httpClient)
	results := c.probeAll()

	assert.Equal(t, map[string]bool{"local": false, "prod": true}, results)
	assert.Equal(t, 1, httpClient.attemptsFor("local.test"))
	assert.Equal(t, 1, httpClient.attemptsFor("prod.test"))
}

func TestProbeAllEntersDemoModeWhenNothingHealthy(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = failingResponse()
	httpClient.respond["prod.test"] = failingResponse()

	c := newTestClient(testEndpoints(), httpClient)
	c.probeAll()

	status := c.GetStatus()
	assert.Equal(t, "demo", status.Mode)
	assert.Equal(t, demoEndpointName, status.ActiveEndpoint)
}

func TestProbeAllRecoversFromDemoMode(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = failingResponse()
	httpClient.respond["prod.test"] = okResponse(`{"status":"ok"}`)

	c := newTestClient(testEndpoints(), httpClient)
	c.enterDemoMode("test setup")

	c.probeAll()

	status := c.GetStatus()
	assert.Equal(t, "online", status.Mode)
	assert.Equal(t, "prod", status.ActiveEndpoint, "the first healthy endpoint in priority order is adopted")
}

func TestProbeAllLeavesOfflineModeAlone(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = okResponse(`{"status":"ok"}`)
	httpClient.respond["prod.test"] = okResponse(`{"status":"ok"}`)

	c := newTestClient(testEndpoints(), httpClient)
	c.SetConnectivity(false)

	c.probeAll()

	assert.Equal(t, ModeOffline, c.currentMode(), "the connectivity signal owns the offline transition")
}
