package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	log "github.com/Financial-Times/go-logger"
	"github.com/gorilla/mux"
)

// Handler exposes the diagnostics and proxy surface of a client over HTTP.
type Handler struct {
	client      *Client
	environment string
}

func NewHandler(client *Client, environment string) *Handler {
	return &Handler{
		client:      client,
		environment: environment,
	}
}

// Register mounts all routes on the given router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/__status", h.handleStatus).Methods("GET")
	router.HandleFunc("/__clear-cache", h.handleClearCache).Methods("POST")
	router.HandleFunc("/__invalidate", h.handleInvalidate).Methods("POST")
	router.HandleFunc("/__switch-endpoint", h.handleSwitchEndpoint).Methods("POST")
	router.HandleFunc("/__connectivity", h.handleConnectivity).Methods("POST")
	router.HandleFunc("/__health", h.handleHealth)
	router.HandleFunc("/__gtg", h.handleGoodToGo)
	router.PathPrefix("/api/").HandlerFunc(h.handleProxy)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	if err := enc.Encode(h.client.GetStatus()); err != nil {
		log.WithError(err).Errorf("Cannot encode status to ResponseWriter.")
	}
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.client.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Provide a pattern query parameter."))
		return
	}

	removed := h.client.Invalidate(pattern)
	fmt.Fprintf(w, "Removed %d entries.", removed)
}

func (h *Handler) handleSwitchEndpoint(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Provide a name query parameter."))
		return
	}

	if err := h.client.SwitchEndpoint(name); err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("state") {
	case "connected":
		h.client.SetConnectivity(true)
	case "disconnected":
		h.client.SetConnectivity(false)
	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Provide state=connected or state=disconnected."))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	var checks []fthealth.Check
	for _, endpoint := range h.client.registry {
		if endpoint.isDemo() {
			continue
		}
		checks = append(checks, newEndpointHealthCheck(h.client, endpoint))
	}

	healthResult := fthealth.RunCheck(fthealth.HealthCheck{
		SystemCode:  "resilient-gateway",
		Name:        h.environment + " resilient gateway",
		Description: "Aggregate reachability of the configured backend endpoints.",
		Checks:      checks,
	})
	sort.Sort(byNameComparator(healthResult.Checks))

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	if err := enc.Encode(healthResult); err != nil {
		log.WithError(err).Errorf("Cannot encode health results to ResponseWriter.")
	}
}

// used for sorting checks
type byNameComparator []fthealth.CheckResult

func (s byNameComparator) Less(i, j int) bool {
	return s[i].Name < s[j].Name
}

func (s byNameComparator) Len() int {
	return len(s)
}

func (s byNameComparator) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func newEndpointHealthCheck(client *Client, endpoint Endpoint) fthealth.Check {
	return fthealth.Check{
		BusinessImpact:   "Requests fall back to lower-priority endpoints and ultimately to canned demo data.",
		Name:             endpoint.Name,
		PanicGuide:       "https://github.com/site-platform/resilient-gateway/blob/master/README.md",
		Severity:         2,
		TechnicalSummary: "The endpoint did not answer its last liveness probe.",
		Checker: func() (string, error) {
			client.health.RLock()
			health, ok := client.health.m[endpoint.Name]
			client.health.RUnlock()

			if !ok || !health.known {
				return "not probed yet", nil
			}
			if !health.healthy {
				return "", fmt.Errorf("endpoint %s is unhealthy: %s", endpoint.Name, health.lastError)
			}

			return "endpoint is reachable", nil
		},
	}
}

func (h *Handler) handleGoodToGo(w http.ResponseWriter, r *http.Request) {
	if h.client.currentMode() != ModeOnline {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Serving synthetic data only."))
		return
	}

	w.Write([]byte("OK"))
}

// handleProxy forwards collaborator traffic through Request, so callers get
// the full retry, fallback and caching behavior over plain HTTP.
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Cannot read request body."))
		return
	}

	opts := &RequestOptions{
		Method:  r.Method,
		Body:    body,
		NoCache: !useCache(r.URL),
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		opts.Headers = map[string]string{"Accept": accept}
	}

	payload, err := h.client.Request(r.URL.Path, opts)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func useCache(theURL *url.URL) bool {
	//use cache by default
	return theURL.Query().Get("cache") != "false"
}
