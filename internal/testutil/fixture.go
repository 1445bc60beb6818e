// Package testutil provides a running engine over a temporary SQLite store
// for tests outside the engine package.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/store"
)

// Fixture is an engine running over a store in t.TempDir().
// Everything is torn down by t.Cleanup.
type Fixture struct {
	Engine *engine.Engine
	Store  *store.Store
	Path   string

	// RequestIDs numbers every submission; the default generator for the
	// engine unless opts supply another.
	RequestIDs *SequentialRequestIDs

	opts []engine.Option
	stop func()
}

// NewFixture opens a fresh store and starts an engine over it.
// opts are applied after the fixture's own request ID generator.
func NewFixture(t testing.TB, opts ...engine.Option) *Fixture {
	t.Helper()
	f := &Fixture{
		Path:       filepath.Join(t.TempDir(), "linkboard.db"),
		RequestIDs: NewSequentialRequestIDs("req"),
		opts:       opts,
	}
	f.start(t)
	t.Cleanup(f.shutdown)
	return f
}

// Restart stops the engine, closes the store and brings both back up from
// the same file, as a process restart would.
func (f *Fixture) Restart(t testing.TB) {
	t.Helper()
	f.shutdown()
	f.start(t)
}

func (f *Fixture) start(t testing.TB) {
	t.Helper()

	st, err := store.Open(f.Path)
	require.NoError(t, err)

	opts := append([]engine.Option{engine.WithRequestIDGenerator(f.RequestIDs)}, f.opts...)
	e := engine.New(st, opts...)
	require.NoError(t, e.Load(context.Background(), st))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(context.Background())
	}()

	f.Engine = e
	f.Store = st
	f.stop = func() {
		e.Stop()
		<-done
		_ = st.Close()
	}
}

func (f *Fixture) shutdown() {
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
}
