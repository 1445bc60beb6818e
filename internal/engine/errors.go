package engine

import "errors"

// ErrStopped is returned when a command is submitted to a stopped engine,
// or was still queued when the engine stopped.
var ErrStopped = errors.New("engine stopped")

// ErrAlreadyPersisted is returned when the store already holds a command
// with the same ID, so none of the command's state rows were written.
var ErrAlreadyPersisted = errors.New("command already persisted")
