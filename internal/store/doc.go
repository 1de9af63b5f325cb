// Package store provides SQLite-backed local storage for the viewer.
//
// The store holds:
//   - View outbox: view records awaiting delivery to the collaborator
//   - Responses: the local user's interactive responses and their status
//   - Reactions: the local user's emoji reactions
//   - Transitions: an append-only log of sequencer transitions for replay
//
// Ordering uses the autoincrement id or seq column, never timestamps.
// Timestamps are stored as unix milliseconds.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are goose migrations embedded from migrations/.
package store
