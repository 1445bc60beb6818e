package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/linkboard/internal/config"
	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/store"
	"github.com/roach88/linkboard/internal/telemetry"
)

// session is an engine running over the configured database for the
// lifetime of one command. The store lock is held until Close.
type session struct {
	store    *store.Store
	engine   *engine.Engine
	provider *telemetry.Provider
	done     chan error
}

// openSession opens the database, loads the persisted registries and starts
// the engine loop. Spans go to traceOut when tracing is enabled.
func openSession(ctx context.Context, cfg config.Config, traceOut io.Writer) (*session, error) {
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	provider, err := telemetry.NewProvider(cfg.Tracing, traceOut)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start tracing", err)
	}

	eng := engine.New(st,
		engine.WithCapacity(cfg.MaxRecordBytes),
		engine.WithTracer(provider.Tracer()),
	)
	if err := eng.Load(ctx, st); err != nil {
		_ = provider.Shutdown(ctx)
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load database", err)
	}

	s := &session{
		store:    st,
		engine:   eng,
		provider: provider,
		done:     make(chan error, 1),
	}
	go func() {
		// The loop outlives ctx; Close stops it after the last reply.
		s.done <- eng.Run(context.WithoutCancel(ctx))
	}()
	return s, nil
}

// Close stops the engine, flushes spans and releases the database.
func (s *session) Close() error {
	s.engine.Stop()
	runErr := <-s.done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	traceErr := s.provider.Shutdown(ctx)

	return errors.Join(runErr, traceErr, s.store.Close())
}
