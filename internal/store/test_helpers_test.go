package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/linkboard/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a command record with its content-addressed ID.
func createTestRecord(seq int64, cmd ir.Command, res ir.Result) ir.CommandRecord {
	return ir.CommandRecord{
		Seq:       seq,
		ID:        ir.MustCommandID(cmd, seq),
		RequestID: "req-test",
		Command:   cmd,
		Result:    res,
	}
}

func createCmd(registry string, owner ir.Address) ir.Command {
	return ir.Command{Kind: ir.CommandCreate, Registry: registry, Caller: owner}
}

func addLinkCmd(registry string, submitter ir.Address, link string) ir.Command {
	return ir.Command{Kind: ir.CommandAddLink, Registry: registry, Caller: submitter, Link: link}
}

func voteCmd(registry string, caller ir.Address, index uint64, delta int64) ir.Command {
	return ir.Command{Kind: ir.CommandVote, Registry: registry, Caller: caller, Index: index, Delta: delta}
}
