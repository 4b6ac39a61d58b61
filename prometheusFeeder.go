package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFeeder periodically mirrors the client status into Prometheus
// gauges.
type PrometheusFeeder struct {
	environment string
	ticker      *time.Ticker
	client      *Client
}

func NewPrometheusFeeder(environment string, client *Client) *PrometheusFeeder {
	ticker := time.NewTicker(60 * time.Second)
	return &PrometheusFeeder{
		environment: environment,
		ticker:      ticker,
		client:      client,
	}
}

func (f PrometheusFeeder) Feed() {
	setPilotLight(f.environment)

	endpointStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "backend",
			Name:      "endpointstatus",
			Help:      "Status of the endpoint: 0 - healthy; 1 - unhealthy; 2 - unknown",
		},
		[]string{
			"environment",
			"endpoint",
		})
	modeStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "backend",
			Name:      "mode",
			Help:      "Mode of the client: 0 - online; 1 - demo; 2 - offline",
		},
		[]string{
			"environment",
		})
	cacheSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "backend",
			Name:      "cachesize",
			Help:      "Number of entries in the request cache",
		},
		[]string{
			"environment",
		})
	prometheus.MustRegister(endpointStatus, modeStatus, cacheSize)

	for range f.ticker.C {
		status := f.client.GetStatus()
		for _, endpoint := range status.Endpoints {
			endpointStatus.With(
				prometheus.Labels{
					"environment": f.environment,
					"endpoint":    endpoint.Name,
				}).Set(healthToGaugeValue(endpoint.Health))
		}
		modeStatus.With(prometheus.Labels{"environment": f.environment}).Set(modeToGaugeValue(status.Mode))
		cacheSize.With(prometheus.Labels{"environment": f.environment}).Set(float64(status.CacheSize))
	}
}

func setPilotLight(environment string) {
	pilotLight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "backend",
			Name:      "pilotlight",
			Help:      "Pilot light for the service monitoring the backend endpoints",
		},
		[]string{
			"environment",
		})
	prometheus.MustRegister(pilotLight)
	pilotLight.With(prometheus.Labels{"environment": environment}).Set(1)
}

func healthToGaugeValue(health string) float64 {
	switch health {
	case "healthy":
		return 0
	case "unhealthy":
		return 1
	}

	return 2
}

func modeToGaugeValue(mode string) float64 {
	switch mode {
	case "online":
		return 0
	case "demo":
		return 1
	}

	return 2
}
