package engine

import (
	"sort"
	"sync"

	"github.com/roach88/linkboard/internal/ir"
)

// projection holds the last published snapshot of every registry.
//
// The Run goroutine publishes a fresh snapshot after each accepted command;
// readers copy out under a read lock. A published ir.State is never mutated,
// so holding the lock only covers the map lookup and the copy.
type projection struct {
	mu     sync.RWMutex
	states map[string]ir.State
}

func newProjection() *projection {
	return &projection{states: make(map[string]ir.State)}
}

// publish replaces the snapshot of one registry.
func (p *projection) publish(s ir.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[s.Registry] = s
}

// get returns a private copy of a registry's snapshot.
// Registries that were never created read as ir.EmptyState.
func (p *projection) get(registry string) ir.State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.states[registry]
	if !ok {
		return ir.EmptyState(registry)
	}
	return s.Clone()
}

// registries returns the IDs of all initialized registries, sorted.
func (p *projection) registries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.states))
	for id, s := range p.states {
		if s.Initialized {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
