package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RequestIDGenerator generates correlation tokens for submitted commands.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined request IDs for deterministic tests.
// After the list is exhausted it keeps returning the last token.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
// Panics if the generator was built with no tokens.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.tokens) == 0 {
		panic("FixedGenerator: no tokens")
	}
	if g.idx >= len(g.tokens) {
		return g.tokens[len(g.tokens)-1]
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
