package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConnectivityDisconnect(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())

	c.SetConnectivity(false)
	assert.Equal(t, ModeOffline, c.currentMode())

	// Repeated disconnects are a no-op.
	c.SetConnectivity(false)
	assert.Equal(t, ModeOffline, c.currentMode())
}

func TestSetConnectivityReconnectFindsWorkingEndpoint(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = failingResponse()
	httpClient.respond["prod.test"] = okResponse(`{"status":"ok"}`)

	c := newTestClient(testEndpoints(), httpClient)
	c.SetConnectivity(false)

	c.SetConnectivity(true)

	status := c.GetStatus()
	assert.Equal(t, "online", status.Mode)
	assert.Equal(t, "prod", status.ActiveEndpoint)
	assert.Equal(t, 1, httpClient.attemptsFor("local.test"), "probing stops at the first healthy endpoint")
}

func TestSetConnectivityReconnectWithoutBackendFallsToDemo(t *testing.T) {
	httpClient := newCountingHTTPClient()
	httpClient.respond["local.test"] = failingResponse()
	httpClient.respond["prod.test"] = failingResponse()

	c := newTestClient(testEndpoints(), httpClient)
	c.SetConnectivity(false)

	c.SetConnectivity(true)

	status := c.GetStatus()
	assert.Equal(t, "demo", status.Mode)
	assert.Equal(t, demoEndpointName, status.ActiveEndpoint)
}

func TestSetConnectivityConnectedWhileOnlineIsNoOp(t *testing.T) {
	httpClient := newCountingHTTPClient()
	c := newTestClient(testEndpoints(), httpClient)

	c.SetConnectivity(true)

	assert.Equal(t, ModeOnline, c.currentMode())
	assert.Equal(t, 0, httpClient.attemptsFor("local.test"), "no probing unless recovering from offline")
}

func TestDisconnectFromDemoMode(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())
	c.enterDemoMode("test setup")

	c.SetConnectivity(false)
	assert.Equal(t, ModeOffline, c.currentMode())
}

func TestAdoptEndpointWhileOfflineIsIgnored(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())
	c.SetConnectivity(false)

	// A success from an attempt already in flight when the disconnect
	// arrived must not override the signal.
	c.adoptEndpoint(c.registry[1])
	assert.Equal(t, ModeOffline, c.currentMode())
}

func TestEnterDemoModeWhileOfflineIsIgnored(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())
	c.SetConnectivity(false)

	c.enterDemoMode("late chain exhaustion")
	assert.Equal(t, ModeOffline, c.currentMode())
}

func TestSwitchEndpoint(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())

	require.NoError(t, c.SwitchEndpoint("prod"))
	status := c.GetStatus()
	assert.Equal(t, "online", status.Mode)
	assert.Equal(t, "prod", status.ActiveEndpoint)
}

func TestSwitchEndpointToDemo(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())

	require.NoError(t, c.SwitchEndpoint(demoEndpointName))
	assert.Equal(t, ModeDemo, c.currentMode())
}

func TestSwitchEndpointUnknownName(t *testing.T) {
	c := newTestClient(testEndpoints(), newCountingHTTPClient())

	err := c.SwitchEndpoint("nonexistent")
	assert.Error(t, err)
	assert.Equal(t, ModeOnline, c.currentMode())
}
