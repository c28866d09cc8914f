// Package store provides SQLite-backed storage for trace scripts.
//
// A stored trace is one row in traces plus its scopes, signals and steps,
// each keyed by (trace_id, seq) where seq is the element's position in the
// script. Reads always ORDER BY seq, so a loaded script renders the same
// VCD file as the one that was saved.
//
// Trace ids are UUIDv7 strings by default; tests inject a FixedGenerator.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Deleting a trace cascades to its rows
package store
