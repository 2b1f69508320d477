package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", event)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFetchCount:
		if result.Fetches != a.Count {
			return &AssertionError{
				Type:     AssertFetchCount,
				Expected: fmt.Sprintf("%d requests", a.Count),
				Actual:   fmt.Sprintf("%d requests", result.Fetches),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertCacheValue:
		return assertCacheValue(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Key() == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %q", a.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events appear in order. Intervening events
// are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Events) && event.Key() == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("%q not found after %v", a.Events[next], a.Events[:next]),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Key() == a.Event {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%q exactly %d times", a.Event, a.Count),
		Actual:   fmt.Sprintf("%d times", count),
		Trace:    trace,
	}
}

// assertCacheValue compares gjson paths into the cached data. Values are
// compared after a JSON round trip so YAML ints match JSON numbers.
func assertCacheValue(result *Result, a Assertion) error {
	fp, named := result.Fingerprints[a.Operation]
	entry, cached := result.Cache[fp]
	if !named {
		cached = false
	}

	if a.Absent {
		if cached {
			return &AssertionError{
				Type:     AssertCacheValue,
				Expected: fmt.Sprintf("no cache entry for %s", a.Operation),
				Actual:   "entry present",
				Trace:    result.Trace,
			}
		}
		return nil
	}
	if !cached {
		return &AssertionError{
			Type:     AssertCacheValue,
			Expected: fmt.Sprintf("cache entry for %s", a.Operation),
			Actual:   "no entry",
			Trace:    result.Trace,
		}
	}

	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode cached data: %w", err)
	}

	paths := make([]string, 0, len(a.Expect))
	for p := range a.Expect {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		want, err := normalize(a.Expect[path])
		if err != nil {
			return fmt.Errorf("expect %s: %w", path, err)
		}
		got := gjson.GetBytes(data, path)
		if !got.Exists() || !reflect.DeepEqual(got.Value(), want) {
			return &AssertionError{
				Type:     AssertCacheValue,
				Expected: fmt.Sprintf("%s.%s = %v", a.Operation, path, want),
				Actual:   fmt.Sprintf("%s.%s = %s", a.Operation, path, got.Raw),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
