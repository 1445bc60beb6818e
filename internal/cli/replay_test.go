package cli

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkboard/internal/engine"
)

func TestReplayEmptyDatabase(t *testing.T) {
	out, err := execute(t, "replay", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 0 command(s), 0 registry(s)")
	assert.Contains(t, out, "✓ Stored state matches the command log")
}

func TestReplayMatches(t *testing.T) {
	db := tempDB(t)
	seedBoard(t, db)

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 6 command(s), 1 registry(s)")
	assert.Contains(t, out, "✓ Stored state matches the command log")
}

func TestReplayJSON(t *testing.T) {
	db := tempDB(t)
	seedBoard(t, db)

	out, err := execute(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   engine.ReplayReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, resp.Data.Commands)
	assert.Equal(t, 1, resp.Data.Registries)
	assert.Empty(t, resp.Data.Divergences)
}

// tamper edits the stored projection behind the engine's back.
func tamper(t *testing.T, db, stmt string) {
	t.Helper()
	conn, err := sql.Open("sqlite3", db)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Exec(stmt)
	require.NoError(t, err)
}

func TestReplayDetectsDivergence(t *testing.T) {
	db := tempDB(t)
	seedBoard(t, db)
	tamper(t, db, `UPDATE entries SET vote = 99 WHERE registry_id = 'default' AND idx = 1`)

	out, err := execute(t, "replay", "--db", db, "--verbose")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Registry: default")
	assert.Contains(t, out, "state hash mismatch")
	assert.Contains(t, out, "Stored:")
	assert.Contains(t, out, "✗ Replay verification failed")

	out, err = execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_REPLAY_DIVERGED", resp.Error.Code)
}

func TestReplayBrokenLog(t *testing.T) {
	db := tempDB(t)
	seedBoard(t, db)
	// Dropping the create makes the first add_link unreplayable.
	tamper(t, db, `DELETE FROM commands WHERE kind = 'create'`)

	_, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to replay command log")
}
