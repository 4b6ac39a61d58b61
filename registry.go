package client

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	demoEndpointName = "demo"
	demoPriority     = 99

	defaultHealthPath = "/api/health"
)

func alwaysCandidate(Context) bool {
	return true
}

// builtinEndpoints are the locations the client knows about without any
// operator configuration. The demo endpoint is not listed here; buildRegistry
// always appends it last.
var builtinEndpoints = []Endpoint{
	{
		Name:       "local",
		BaseURL:    "http://localhost:3001",
		Priority:   1,
		HealthPath: defaultHealthPath,
		isCandidate: func(ctx Context) bool {
			return ctx.IsDevelopment
		},
	},
	{
		Name:        "primary",
		BaseURL:     "https://api.site-platform.io",
		Priority:    2,
		HealthPath:  defaultHealthPath,
		isCandidate: alwaysCandidate,
	},
	{
		Name:       "standby",
		BaseURL:    "https://api-standby.site-platform.io",
		Priority:   3,
		HealthPath: defaultHealthPath,
		isCandidate: func(ctx Context) bool {
			return ctx.DeploymentKind == "production"
		},
	},
}

// buildRegistry evaluates the candidate predicates once against the given
// context, sorts the survivors ascending by priority and appends the demo
// endpoint. The result never has fewer than one entry and is treated as
// immutable for the client's lifetime.
func buildRegistry(ctx Context, extra []Endpoint) []Endpoint {
	var chain []Endpoint
	for _, endpoint := range append(append([]Endpoint{}, builtinEndpoints...), extra...) {
		if endpoint.isCandidate == nil || endpoint.isCandidate(ctx) {
			if endpoint.HealthPath == "" {
				endpoint.HealthPath = defaultHealthPath
			}
			chain = append(chain, endpoint)
		}
	}

	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority < chain[j].Priority
	})

	chain = append(chain, Endpoint{
		Name:        demoEndpointName,
		Priority:    demoPriority,
		isCandidate: alwaysCandidate,
	})

	return chain
}

type endpointDefinition struct {
	Name       string `yaml:"name"`
	BaseURL    string `yaml:"baseURL"`
	Priority   int    `yaml:"priority"`
	HealthPath string `yaml:"healthPath"`
	Scope      string `yaml:"scope"`
}

type endpointsFile struct {
	Endpoints []endpointDefinition `yaml:"endpoints"`
}

// LoadEndpointsFile parses operator-provided endpoint definitions. Scope maps
// to the candidate predicate: "always" (default), "development" or
// "production".
func LoadEndpointsFile(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read endpoints file %s: %w", path, err)
	}

	var parsed endpointsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse endpoints file %s: %w", path, err)
	}

	endpoints := make([]Endpoint, 0, len(parsed.Endpoints))
	for _, def := range parsed.Endpoints {
		if def.Name == "" || def.BaseURL == "" {
			return nil, fmt.Errorf("endpoints file %s: every endpoint needs a name and a baseURL", path)
		}
		if def.Name == demoEndpointName {
			return nil, fmt.Errorf("endpoints file %s: the name %q is reserved", path, demoEndpointName)
		}

		predicate, err := scopePredicate(def.Scope)
		if err != nil {
			return nil, fmt.Errorf("endpoints file %s: endpoint %s: %w", path, def.Name, err)
		}

		endpoints = append(endpoints, Endpoint{
			Name:        def.Name,
			BaseURL:     strings.TrimRight(def.BaseURL, "/"),
			Priority:    def.Priority,
			HealthPath:  def.HealthPath,
			isCandidate: predicate,
		})
	}

	return endpoints, nil
}

func scopePredicate(scope string) (func(Context) bool, error) {
	switch scope {
	case "", "always":
		return alwaysCandidate, nil
	case "development":
		return func(ctx Context) bool { return ctx.IsDevelopment }, nil
	case "production":
		return func(ctx Context) bool { return ctx.DeploymentKind == "production" }, nil
	}

	return nil, fmt.Errorf("unknown scope %q", scope)
}
