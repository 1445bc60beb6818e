package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkboard/internal/ir"
)

// fakeSource serves a fixed log and projection.
type fakeSource struct {
	cmds   []ir.CommandRecord
	states []ir.State
}

func (f fakeSource) ReadCommands(context.Context) ([]ir.CommandRecord, error) {
	return f.cmds, nil
}

func (f fakeSource) ReadAllStates(context.Context) ([]ir.State, error) {
	return f.states, nil
}

func record(seq int64, cmd ir.Command, res ir.Result) ir.CommandRecord {
	return ir.CommandRecord{
		Seq:     seq,
		ID:      ir.MustCommandID(cmd, seq),
		Command: cmd,
		Result:  res,
	}
}

func scenarioLog() []ir.CommandRecord {
	return []ir.CommandRecord{
		record(1, ir.Command{Kind: ir.CommandCreate, Registry: reg, Caller: "A"}, ir.Result{}),
		record(2, ir.Command{Kind: ir.CommandAddLink, Registry: reg, Caller: "A", Link: "gif1"}, ir.Result{Index: 0}),
		record(3, ir.Command{Kind: ir.CommandVote, Registry: reg, Caller: "B", Index: 0, Delta: 1}, ir.Result{Vote: 1}),
		record(4, ir.Command{Kind: ir.CommandVote, Registry: reg, Caller: "B", Index: 0, Delta: 1}, ir.Result{Vote: 2}),
		record(5, ir.Command{Kind: ir.CommandVote, Registry: reg, Caller: "B", Index: 0, Delta: -1}, ir.Result{Vote: 1}),
	}
}

func scenarioState() ir.State {
	return ir.State{
		Registry:     reg,
		Owner:        "A",
		Initialized:  true,
		TotalEntries: 1,
		Entries:      []ir.Entry{{Index: 0, Submitter: "A", Link: "gif1", Vote: 1}},
	}
}

func TestReplay_RebuildsState(t *testing.T) {
	states, err := Replay(scenarioLog())
	require.NoError(t, err)

	require.Contains(t, states, reg)
	assert.Equal(t, scenarioState(), states[reg])
}

func TestReplay_Empty(t *testing.T) {
	states, err := Replay(nil)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestReplay_RejectsOutOfOrderSeq(t *testing.T) {
	log := scenarioLog()
	log[2], log[3] = log[3], log[2]

	_, err := Replay(log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq 3 after 4")
}

func TestReplay_RejectsResultMismatch(t *testing.T) {
	log := scenarioLog()
	log[4].Result = ir.Result{Vote: 7}

	_, err := Replay(log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay seq 5")
}

func TestReplay_RejectsInvalidCommand(t *testing.T) {
	log := scenarioLog()[1:] // add_link before create

	_, err := Replay(log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_INITIALIZED")
}

func TestVerifyReplay_OK(t *testing.T) {
	report, err := VerifyReplay(context.Background(), fakeSource{
		cmds:   scenarioLog(),
		states: []ir.State{scenarioState()},
	})
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 5, report.Commands)
	assert.Equal(t, 1, report.Registries)
}

func TestVerifyReplay_Divergences(t *testing.T) {
	tampered := scenarioState()
	tampered.Entries[0].Vote = 3
	orphan := ir.State{Registry: "orphan", Owner: "Z", Initialized: true, Entries: []ir.Entry{}}

	report, err := VerifyReplay(context.Background(), fakeSource{
		cmds:   scenarioLog(),
		states: []ir.State{tampered, orphan},
	})
	require.NoError(t, err)

	assert.False(t, report.OK())
	require.Len(t, report.Divergences, 2)
	assert.Equal(t, reg, report.Divergences[0].Registry)
	assert.Equal(t, "state hash mismatch", report.Divergences[0].Reason)
	assert.NotEqual(t, report.Divergences[0].Stored, report.Divergences[0].Replayed)
	assert.Equal(t, "orphan", report.Divergences[1].Registry)
}

func TestVerifyReplay_ComparesLinkBytes(t *testing.T) {
	decomposed := "cafe\u0301"
	log := []ir.CommandRecord{
		record(1, ir.Command{Kind: ir.CommandCreate, Registry: reg, Caller: "A"}, ir.Result{}),
		record(2, ir.Command{Kind: ir.CommandAddLink, Registry: reg, Caller: "A", Link: decomposed}, ir.Result{Index: 0}),
	}
	stored := ir.State{
		Registry:     reg,
		Owner:        "A",
		Initialized:  true,
		TotalEntries: 1,
		Entries:      []ir.Entry{{Index: 0, Submitter: "A", Link: decomposed}},
	}

	states, err := Replay(log)
	require.NoError(t, err)
	assert.Equal(t, decomposed, states[reg].Entries[0].Link)

	report, err := VerifyReplay(context.Background(), fakeSource{cmds: log, states: []ir.State{stored}})
	require.NoError(t, err)
	assert.True(t, report.OK())

	// The composed spelling renders the same but is a different link.
	stored.Entries[0].Link = "caf\u00e9"
	report, err = VerifyReplay(context.Background(), fakeSource{cmds: log, states: []ir.State{stored}})
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "state hash mismatch", report.Divergences[0].Reason)

	// Every invalid byte encodes as the same \ufffd escape, so only the byte
	// comparison tells these apart.
	stored.Entries[0].Link = "\xff"
	log[1] = record(2, ir.Command{Kind: ir.CommandAddLink, Registry: reg, Caller: "A", Link: "\xfe"}, ir.Result{Index: 0})
	report, err = VerifyReplay(context.Background(), fakeSource{cmds: log, states: []ir.State{stored}})
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "state bytes mismatch", report.Divergences[0].Reason)
}

func TestVerifyReplay_MissingFromStore(t *testing.T) {
	report, err := VerifyReplay(context.Background(), fakeSource{
		cmds: scenarioLog(),
	})
	require.NoError(t, err)

	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "replayed registry missing from store", report.Divergences[0].Reason)
	assert.Equal(t, 1, report.Registries)
}

func TestVerifyReplay_AgainstStore(t *testing.T) {
	ctx := testCtx(t)
	s := setupTestStore(t)
	e := newRunningEngine(t, s)

	require.NoError(t, e.Create(ctx, reg, "A"))
	require.NoError(t, e.Create(ctx, "other", "B"))
	_, err := e.AddLink(ctx, reg, "A", "gif1")
	require.NoError(t, err)
	_, err = e.AddLink(ctx, "other", "C", "gif2")
	require.NoError(t, err)
	_, err = e.Vote(ctx, "other", "D", 0, -1)
	require.NoError(t, err)

	report, err := VerifyReplay(ctx, s)
	require.NoError(t, err)
	assert.True(t, report.OK(), "divergences: %+v", report.Divergences)
	assert.Equal(t, 5, report.Commands)
	assert.Equal(t, 2, report.Registries)
}
