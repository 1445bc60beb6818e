package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// validate runs the checks that need no record state.
// A command failing here never reaches the Run loop.
func validate(cmd ir.Command) error {
	if !cmd.Kind.Valid() {
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	if err := registry.ValidateIdentity(cmd.Registry, cmd.Caller); err != nil {
		return err
	}

	switch cmd.Kind {
	case ir.CommandAddLink:
		return registry.ValidateLink(cmd.Registry, cmd.Link)
	case ir.CommandVote:
		return registry.ValidateDelta(cmd.Registry, cmd.Delta)
	}
	return nil
}

// process applies one command. Called only from the Run goroutine.
//
// On success the command is persisted, the new snapshot published, and only
// then is the reply produced. On any failure the record is left exactly as
// the last published snapshot describes it.
func (e *Engine) process(req *request) reply {
	cmd := req.cmd

	ctx, span := e.tracer.Start(req.ctx, "linkboard."+string(cmd.Kind),
		trace.WithAttributes(
			attribute.String("linkboard.registry", cmd.Registry),
			attribute.String("linkboard.caller", string(cmd.Caller)),
			attribute.String("linkboard.request_id", req.requestID),
		),
	)
	defer span.End()

	slog.Debug("command dequeued",
		"request_id", req.requestID,
		"command", cmd.String(),
	)

	rec, ok := e.records[cmd.Registry]
	if !ok {
		rec = registry.New(cmd.Registry, registry.WithCapacity(e.capacity))
	}

	res, err := apply(rec, cmd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logRejection(req.requestID, cmd, err)
		return reply{err: err}
	}

	seq := e.clock.Next()
	id, err := ir.CommandID(cmd, seq)
	if err != nil {
		e.rollback(rec, ok)
		span.RecordError(err)
		span.SetStatus(codes.Error, "command id")
		return reply{err: fmt.Errorf("compute command id: %w", err)}
	}

	cr := ir.CommandRecord{
		Seq:       seq,
		ID:        id,
		RequestID: req.requestID,
		Command:   cmd,
		Result:    res,
	}
	span.SetAttributes(attribute.Int64("linkboard.seq", seq))

	if e.store != nil {
		// Once dequeued a command runs to completion; only the caller's wait
		// is bound to its context.
		inserted, err := e.store.WriteCommand(context.WithoutCancel(ctx), cr)
		if err == nil && !inserted {
			err = fmt.Errorf("%w: id %s", ErrAlreadyPersisted, id)
		}
		if err != nil {
			e.rollback(rec, ok)
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist")
			slog.Error("persist command failed",
				"request_id", req.requestID,
				"command", cmd.String(),
				"seq", seq,
				"error", err,
			)
			return reply{err: fmt.Errorf("persist %s: %w", cmd.Kind, err)}
		}
	}

	e.records[cmd.Registry] = rec
	e.projection.publish(rec.Snapshot())

	slog.Info("command accepted",
		"request_id", req.requestID,
		"command", cmd.String(),
		"seq", seq,
		"result", res.Fields(cmd.Kind),
	)
	return reply{rec: cr}
}

// apply runs the record primitive for a command.
// Rejections leave rec unchanged.
func apply(rec *registry.Record, cmd ir.Command) (ir.Result, error) {
	switch cmd.Kind {
	case ir.CommandCreate:
		if err := rec.Create(cmd.Caller); err != nil {
			return ir.Result{}, err
		}
		return ir.Result{}, nil

	case ir.CommandAddLink:
		index, err := rec.Append(cmd.Caller, cmd.Link)
		if err != nil {
			return ir.Result{}, err
		}
		return ir.Result{Index: index}, nil

	case ir.CommandVote:
		vote, err := rec.AdjustVote(cmd.Index, cmd.Delta)
		if err != nil {
			return ir.Result{}, err
		}
		return ir.Result{Vote: vote}, nil

	default:
		return ir.Result{}, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

// rollback restores rec to the last published snapshot. A record that was
// never stored in e.records is simply dropped by the caller.
func (e *Engine) rollback(rec *registry.Record, stored bool) {
	if !stored {
		return
	}
	rec.Restore(e.projection.get(rec.ID()))
}

func logRejection(requestID string, cmd ir.Command, err error) {
	slog.Warn("command rejected",
		"request_id", requestID,
		"command", cmd.String(),
		"code", string(registry.CodeOf(err)),
		"error", err,
	)
}
