// Package harness runs engine scenarios written in YAML.
//
// A scenario describes canned server responses, a sequence of steps driven
// against a fresh engine, and assertions over the resulting event trace and
// final cache. Every scenario runs the real engine: requests go to a stub
// fetcher that answers from the scenario's response rules.
//
// # Scenario Format
//
//	name: dedupe_inflight
//	description: "Identical operations share one dispatch"
//	responses:
//	  - match: viewer
//	    body: '{"data":{"viewer":{"id":"u1"}}}'
//	seed:
//	  - name: cached
//	    query: "{ cached }"
//	    data: { cached: true }
//	steps:
//	  - hold: true
//	  - operate: viewer
//	    query: "{ viewer { id } }"
//	  - operate: viewer
//	    query: "{ viewer { id } }"
//	  - release: true
//	  - wait: viewer
//	assertions:
//	  - type: fetch_count
//	    count: 1
//	  - type: trace_order
//	    events: ["fetch viewer", "cache viewer"]
//	  - type: cache_value
//	    operation: viewer
//	    expect: { viewer.id: u1 }
//
// # Steps
//
//   - operate: name the operation and load it with query and variables
//   - wait: block until the named operation's handle settles
//   - hold / release: gate the stub fetcher
//   - reload / reset: broadcast with an optional except operation
//
// Operations are referred to by scenario name everywhere; the trace maps
// fingerprints back to those names so golden files stay readable.
//
// # Assertion Types
//
//   - trace_contains: an event such as "cache viewer" appears in the trace
//   - trace_order: events appear in the given order, gaps allowed
//   - trace_count: an event appears exactly count times
//   - fetch_count: the stub fetcher saw exactly count requests
//   - cache_value: gjson paths into the cached data hold the given values,
//     or with absent: true the operation has no cache entry
//
// # Determinism
//
// Scenarios run with sequential dispatch ids and settle after every wait
// step, so traces are identical across runs as long as no two distinct
// operations are released at the same time.
package harness
