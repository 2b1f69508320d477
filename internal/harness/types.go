package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/gqlcache/internal/gql"
)

// TraceEvent is one engine event as observed by a subscriber.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// Operation is the scenario name of the event's fingerprint (fetch,
	// cache) or empty.
	Operation string `json:"operation,omitempty"`

	// Except is the scenario name spared by a reload or reset.
	Except string `json:"except,omitempty"`

	// Status is the HTTP status of a cache event, 0 when no response was
	// received.
	Status int      `json:"status,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// Key identifies the event for assertions: "cache viewer", "reload" or
// "reset except=viewer".
func (e TraceEvent) Key() string {
	switch {
	case e.Operation != "":
		return e.Type + " " + e.Operation
	case e.Except != "":
		return e.Type + " except=" + e.Except
	default:
		return e.Type
	}
}

// String is the golden line for the event.
func (e TraceEvent) String() string {
	line := fmt.Sprintf("%d %s", e.Seq, e.Key())
	if e.Type != "cache" {
		return line
	}
	status := "-"
	if e.Status != 0 {
		status = fmt.Sprint(e.Status)
	}
	if len(e.Errors) == 0 {
		return line + " status=" + status + " ok"
	}
	return line + " status=" + status + " " + strings.Join(e.Errors, "; ")
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Cache is the engine cache after the last step.
	Cache gql.Cache `json:"cache"`

	// Fetches is the number of requests the stub fetcher received.
	Fetches int `json:"fetches"`

	// Fingerprints maps scenario operation names to fingerprints.
	Fingerprints map[string]string `json:"fingerprints"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Errors:       []string{},
		Cache:        gql.Cache{},
		Fingerprints: make(map[string]string),
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
