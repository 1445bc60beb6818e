// Package engine implements the linkboard command dispatcher: the single
// mutation authority for every registry.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All mutations happen in one goroutine (Engine.Run). This ensures:
// - Two concurrent appends never receive the same index
// - Two concurrent votes on one entry never lose an update
// - The command log is a total order of accepted commands
//
// Command Processing Flow:
// 1. Caller invokes Create / AddLink / Vote from any goroutine
// 2. Cheap validation (identity, link, delta) rejects bad commands up front
// 3. The request is enqueued to the FIFO queue
// 4. Run dequeues one request at a time and applies it to the registry.Record
// 5. Accepted commands are stamped with the next seq and written to the store
// 6. The new registry snapshot is published, then the caller gets its reply
//
// Reads (FetchState) never enter the queue. They copy the last published
// snapshot, so they observe every command whose reply has been sent and
// never a half-applied one.
//
// A command that has been dequeued always runs to completion. Cancelling the
// caller's context abandons the wait, not the command.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Accepted commands are stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// No Partial Application:
// Rejections are detected before the record is touched. If persisting an
// applied mutation fails, the record is restored from the last published
// snapshot before the caller sees the error.
package engine
