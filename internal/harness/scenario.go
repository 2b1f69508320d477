package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one engine scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Responses are tried in order; the first whose Match is a substring of
	// the request query answers it.
	Responses []ResponseRule `yaml:"responses,omitempty"`

	// Seed entries are in the cache before the first step.
	Seed []SeedEntry `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// ResponseRule is a canned server answer.
type ResponseRule struct {
	Match string `yaml:"match"`

	// Status defaults to 200.
	Status int `yaml:"status,omitempty"`

	Body string `yaml:"body,omitempty"`

	// Error makes the fetcher fail instead of answering.
	Error string `yaml:"error,omitempty"`
}

// SeedEntry is a hydrated cache entry.
type SeedEntry struct {
	Name      string         `yaml:"name"`
	Query     string         `yaml:"query"`
	Variables map[string]any `yaml:"variables,omitempty"`
	Data      map[string]any `yaml:"data"`
}

// Step is one action against the engine. Exactly one of Operate, Wait,
// Hold, Release, Reload or Reset is set.
type Step struct {
	Operate      string         `yaml:"operate,omitempty"`
	Query        string         `yaml:"query,omitempty"`
	Variables    map[string]any `yaml:"variables,omitempty"`
	ReloadOnLoad bool           `yaml:"reload_on_load,omitempty"`
	ResetOnLoad  bool           `yaml:"reset_on_load,omitempty"`

	Wait string `yaml:"wait,omitempty"`

	Hold    bool `yaml:"hold,omitempty"`
	Release bool `yaml:"release,omitempty"`

	Reload bool `yaml:"reload,omitempty"`
	Reset  bool `yaml:"reset,omitempty"`

	// Except names the operation spared by reload or reset.
	Except string `yaml:"except,omitempty"`
}

// kind returns the step's action name.
func (s Step) kind() (string, error) {
	var kinds []string
	if s.Operate != "" {
		kinds = append(kinds, "operate")
	}
	if s.Wait != "" {
		kinds = append(kinds, "wait")
	}
	if s.Hold {
		kinds = append(kinds, "hold")
	}
	if s.Release {
		kinds = append(kinds, "release")
	}
	if s.Reload {
		kinds = append(kinds, "reload")
	}
	if s.Reset {
		kinds = append(kinds, "reset")
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("no action")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("several actions %v", kinds)
	}
}

// Assertion validates the trace or the final cache.
type Assertion struct {
	Type string `yaml:"type"`

	// Event is "type operation", e.g. "cache viewer" (trace_contains,
	// trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is used by trace_count and fetch_count.
	Count int `yaml:"count,omitempty"`

	// Operation, Expect and Absent are used by cache_value. Expect maps
	// gjson paths into the cached data to values.
	Operation string         `yaml:"operation,omitempty"`
	Expect    map[string]any `yaml:"expect,omitempty"`
	Absent    bool           `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFetchCount    = "fetch_count"
	AssertCacheValue    = "cache_value"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, r := range s.Responses {
		if r.Match == "" {
			return fmt.Errorf("responses[%d]: match is required", i)
		}
		if r.Error != "" && r.Body != "" {
			return fmt.Errorf("responses[%d]: body and error are mutually exclusive", i)
		}
	}

	named := make(map[string]bool)
	for i, e := range s.Seed {
		if e.Name == "" || e.Query == "" {
			return fmt.Errorf("seed[%d]: name and query are required", i)
		}
		named[e.Name] = true
	}

	for i, step := range s.Steps {
		kind, err := step.kind()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		switch kind {
		case "operate":
			if step.Query == "" {
				return fmt.Errorf("steps[%d]: query is required for operate", i)
			}
			if step.ReloadOnLoad && step.ResetOnLoad {
				return fmt.Errorf("steps[%d]: reload_on_load and reset_on_load are mutually exclusive", i)
			}
			named[step.Operate] = true
		case "wait":
			if !named[step.Wait] {
				return fmt.Errorf("steps[%d]: wait on unknown operation %q", i, step.Wait)
			}
		case "reload", "reset":
			if step.Except != "" && !named[step.Except] {
				return fmt.Errorf("steps[%d]: except names unknown operation %q", i, step.Except)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertFetchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertCacheValue:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for cache_value", index)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: absent and expect are mutually exclusive", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
