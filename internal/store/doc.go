// Package store provides SQLite-backed durable storage for linkboard
// registries.
//
// The store keeps two views of the same data:
//   - Commands: an append-only log of every accepted command, keyed by the
//     engine's logical clock (seq) and a content-addressed command ID
//   - Registries and Entries: the projected current state of each record
//
// Both are written in the same transaction, so the projection always equals
// the result of replaying the log.
//
// # Critical Patterns
//
// Claim-then-apply: WriteCommand inserts the log row first with
// ON CONFLICT(id) DO NOTHING and only touches the projection when the insert
// claimed the slot. Writing the same command twice is a no-op.
//
// Logical time: all ordering uses seq, never timestamps.
// All log queries use ORDER BY seq ASC.
//
// Single mutation authority: Open takes an exclusive advisory lock on
// <path>.lock. A second process opening the same database gets ErrLocked.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
