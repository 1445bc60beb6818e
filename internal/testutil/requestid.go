package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialRequestIDs numbers request IDs in submission order:
// "<prefix>-1", "<prefix>-2", ...
//
// Rejected commands draw an ID too, so the numbers count submissions rather
// than accepted commands.
//
// Thread-safety: safe for concurrent use.
type SequentialRequestIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialRequestIDs creates a generator. An empty prefix uses "req".
func NewSequentialRequestIDs(prefix string) *SequentialRequestIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialRequestIDs{prefix: prefix}
}

// Generate returns the next request ID.
//
// Implements engine.RequestIDGenerator.
func (g *SequentialRequestIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
