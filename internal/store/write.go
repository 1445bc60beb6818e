package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/linkboard/internal/ir"
)

// WriteCommand appends an accepted command to the log and applies its effect
// to the projected state, in one transaction.
//
// Returns inserted=false, without touching the projection, if a command with
// the same ID was already written. Any other failure rolls the whole
// transaction back.
func (s *Store) WriteCommand(ctx context.Context, rec ir.CommandRecord) (inserted bool, err error) {
	if !rec.Command.Kind.Valid() {
		return false, fmt.Errorf("write command: unknown kind %q", rec.Command.Kind)
	}

	argsJSON, err := marshalArgs(rec.Command)
	if err != nil {
		return false, fmt.Errorf("write command: %w", err)
	}
	resultJSON, err := marshalResult(rec.Command.Kind, rec.Result)
	if err != nil {
		return false, fmt.Errorf("write command: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write command: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Step 1: claim the log slot
	result, err := tx.ExecContext(ctx, `
		INSERT INTO commands
		(seq, id, request_id, registry_id, kind, caller, args, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.Seq,
		rec.ID,
		rec.RequestID,
		rec.Command.Registry,
		string(rec.Command.Kind),
		string(rec.Command.Caller),
		argsJSON,
		resultJSON,
	)
	if err != nil {
		return false, fmt.Errorf("write command: insert log: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write command: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	// Step 2: apply to the projection
	switch rec.Command.Kind {
	case ir.CommandCreate:
		err = applyCreate(ctx, tx, rec)
	case ir.CommandAddLink:
		err = applyAddLink(ctx, tx, rec)
	case ir.CommandVote:
		err = applyVote(ctx, tx, rec)
	}
	if err != nil {
		return false, fmt.Errorf("write command %s: %w", rec.Command.Kind, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write command: commit: %w", err)
	}
	return true, nil
}

func applyCreate(ctx context.Context, tx *sql.Tx, rec ir.CommandRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO registries (id, owner, total_entries, created_seq)
		VALUES (?, ?, 0, ?)
	`, rec.Command.Registry, string(rec.Command.Caller), rec.Seq)
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	return nil
}

func applyAddLink(ctx context.Context, tx *sql.Tx, rec ir.CommandRecord) error {
	var total uint64
	err := tx.QueryRowContext(ctx, `
		SELECT total_entries FROM registries WHERE id = ?
	`, rec.Command.Registry).Scan(&total)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if total != rec.Result.Index {
		return fmt.Errorf("index %d does not follow total_entries %d", rec.Result.Index, total)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (registry_id, idx, submitter, link, vote, appended_seq)
		VALUES (?, ?, ?, ?, 0, ?)
	`, rec.Command.Registry, rec.Result.Index, string(rec.Command.Caller), rec.Command.Link, rec.Seq)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE registries SET total_entries = total_entries + 1 WHERE id = ?
	`, rec.Command.Registry)
	if err != nil {
		return fmt.Errorf("bump total_entries: %w", err)
	}
	return nil
}

func applyVote(ctx context.Context, tx *sql.Tx, rec ir.CommandRecord) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE entries SET vote = vote + ?
		WHERE registry_id = ? AND idx = ?
	`, rec.Command.Delta, rec.Command.Registry, rec.Command.Index)
	if err != nil {
		return fmt.Errorf("update vote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vote: rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("entry %d not found", rec.Command.Index)
	}

	var vote int64
	err = tx.QueryRowContext(ctx, `
		SELECT vote FROM entries WHERE registry_id = ? AND idx = ?
	`, rec.Command.Registry, rec.Command.Index).Scan(&vote)
	if err != nil {
		return fmt.Errorf("read vote: %w", err)
	}
	if vote != rec.Result.Vote {
		return fmt.Errorf("stored vote %d diverges from applied vote %d", vote, rec.Result.Vote)
	}
	return nil
}
