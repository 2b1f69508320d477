// Package engine implements the operation cache and request-deduplication
// engine.
//
// The engine owns two maps keyed by fingerprint:
//   - the result cache: fingerprint -> gql.Result, created when a dispatch
//     settles and replaced wholesale by later settlements
//   - the in-flight map: fingerprint -> *Handle, present only while a
//     dispatch for that fingerprint is outstanding
//
// ARCHITECTURE:
//
// Operate builds request parameters, computes the fingerprint and either
// joins the in-flight handle for it or registers a new one and dispatches a
// fetch on its own goroutine. Every dispatch settles exactly once:
//
//  1. cache write and in-flight delete, in one critical section
//  2. "cache" event
//  3. handle resolved
//  4. post-load reload/reset broadcasts requested by callers
//
// So a listener handling "cache" always observes the updated cache, and a
// caller woken by the handle observes the event side effects of step 2.
//
// Failures on the data path never surface as Go errors. A missing fetcher,
// a transport error, a non-2xx status and an undecodable body all become
// fields of the settled gql.Result. Only programmer errors, such as
// mutually exclusive options, are returned from Operate.
//
// INVARIANTS:
//   - At most one dispatch is outstanding per fingerprint. Concurrent
//     identical Operate calls share one *Handle and one fetch.
//   - A new dispatch for the same fingerprint may start as soon as the
//     previous one settled.
//   - Reset and Reload never abort outstanding dispatches. A dispatch that
//     settles after a reset writes its result anyway; last settlement wins.
//
// Events are delivered through an events.Emitter, one at a time and in
// emission order.
package engine
