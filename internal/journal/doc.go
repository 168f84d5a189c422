// Package journal provides durable storage for resolution runs and their
// attempt trails. It implements the engine's Sink so every run is recorded
// as it happens, and exposes read queries for post-hoc inspection (the
// `hagoth trace` command).
//
// Storage is SQLite with WAL mode. Writes are idempotent: replaying the same
// run token and sequence numbers is a no-op, so a crashed process can safely
// re-report.
package journal
