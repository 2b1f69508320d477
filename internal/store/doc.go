// Package store persists hydration caches.
//
// A snapshot is an exported engine cache saved under a label, typically the
// page it was rendered for. Snapshots live in SQLite:
//   - snapshots: one row per snapshot, ordered by seq
//   - snapshot_entries: one row per (snapshot, fingerprint), the Result
//     stored as JSON TEXT
//
// # Ordering
//
//   - Snapshot listings use ORDER BY seq, never created_at; wall time is
//     display data only
//   - Entries are read ORDER BY fingerprint COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Entries are deleted with their snapshot
//
// S3Sink stores the same hydration JSON as single objects in a bucket, for
// handing caches to clients served from a CDN.
package store
