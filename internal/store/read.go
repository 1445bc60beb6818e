package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/linkboard/internal/ir"
)

// ReadState returns the projected state of one registry.
// A registry that was never created reads as ir.EmptyState.
func (s *Store) ReadState(ctx context.Context, registry string) (ir.State, error) {
	state := ir.EmptyState(registry)

	var owner string
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, total_entries FROM registries WHERE id = ?
	`, registry).Scan(&owner, &state.TotalEntries)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return ir.State{}, fmt.Errorf("read registry %s: %w", registry, err)
	}
	state.Owner = ir.Address(owner)
	state.Initialized = true

	entries, err := s.readEntries(ctx, registry)
	if err != nil {
		return ir.State{}, err
	}
	state.Entries = entries
	return state, nil
}

// ReadAllStates returns the projected state of every created registry,
// ordered by registry ID.
func (s *Store) ReadAllStates(ctx context.Context) ([]ir.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM registries ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query registries: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan registry id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate registries: %w", err)
	}
	rows.Close() // Release the single connection before nested reads

	states := make([]ir.State, 0, len(ids))
	for _, id := range ids {
		st, err := s.ReadState(ctx, id)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// readEntries returns a registry's entries in index order.
func (s *Store) readEntries(ctx context.Context, registry string) ([]ir.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, submitter, link, vote
		FROM entries
		WHERE registry_id = ?
		ORDER BY idx ASC
	`, registry)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.Entry{}
	for rows.Next() {
		var e ir.Entry
		var submitter string
		if err := rows.Scan(&e.Index, &submitter, &e.Link, &e.Vote); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Submitter = ir.Address(submitter)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadCommands returns the whole command log ordered by seq.
// Returns an empty slice (not nil) for an empty log.
func (s *Store) ReadCommands(ctx context.Context) ([]ir.CommandRecord, error) {
	return s.queryCommands(ctx, `
		SELECT seq, id, request_id, registry_id, kind, caller, args, result
		FROM commands
		ORDER BY seq ASC
	`)
}

// ReadRegistryCommands returns the command log of one registry ordered by seq.
func (s *Store) ReadRegistryCommands(ctx context.Context, registry string) ([]ir.CommandRecord, error) {
	return s.queryCommands(ctx, `
		SELECT seq, id, request_id, registry_id, kind, caller, args, result
		FROM commands
		WHERE registry_id = ?
		ORDER BY seq ASC
	`, registry)
}

func (s *Store) queryCommands(ctx context.Context, query string, args ...any) ([]ir.CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	records := []ir.CommandRecord{}
	for rows.Next() {
		rec, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return records, nil
}

// scanCommand scans a row into a CommandRecord.
func scanCommand(rows *sql.Rows) (ir.CommandRecord, error) {
	var rec ir.CommandRecord
	var kind, caller, argsJSON, resultJSON string

	if err := rows.Scan(
		&rec.Seq, &rec.ID, &rec.RequestID, &rec.Command.Registry,
		&kind, &caller, &argsJSON, &resultJSON,
	); err != nil {
		return ir.CommandRecord{}, fmt.Errorf("scan command: %w", err)
	}
	rec.Command.Kind = ir.CommandKind(kind)
	rec.Command.Caller = ir.Address(caller)

	if err := unmarshalArgs(argsJSON, &rec.Command); err != nil {
		return ir.CommandRecord{}, err
	}
	res, err := unmarshalResult(resultJSON)
	if err != nil {
		return ir.CommandRecord{}, err
	}
	rec.Result = res
	return rec, nil
}

// MaxSeq returns the highest seq in the command log, or 0 if it is empty.
// The engine resumes its clock from this value.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM commands`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read max seq: %w", err)
	}
	return seq.Int64, nil
}
