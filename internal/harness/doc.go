// Package harness runs YAML scenarios against a real linkboard engine.
//
// Every scenario gets a fresh engine backed by an in-memory SQLite store, a
// fixed request ID generator, and the engine's own logical clock, so the
// same scenario always produces the same trace.
//
// # Scenario Format
//
//	name: vote_tally
//	description: "Votes accumulate on one entry"
//	registry: default          # optional, default "default"
//	capacity: 9000             # optional, bytes; 0 = unlimited
//	steps:
//	  - command: create
//	    as: alice
//	  - command: add_link
//	    as: alice
//	    link: https://example.com/cat.gif
//	    expect: { index: 0 }
//	  - command: vote
//	    as: bob
//	    index: 0
//	    delta: 1
//	    repeat: 10
//	    parallel: true
//	    expect: { vote: 10 }
//	  - command: vote
//	    as: bob
//	    index: 5
//	    delta: 1
//	    expect: { error: INDEX_OUT_OF_RANGE }
//	assertions:
//	  - type: final_state
//	    expect: { initialized: true, owner: alice, total_entries: 1 }
//	  - type: entry
//	    index: 0
//	    expect: { vote: 10 }
//	  - type: trace_count
//	    command: vote
//	    outcome: ok
//	    count: 10
//
// # Steps
//
// A step submits one command, or repeat copies of it. Repeated copies run
// one after another unless parallel is set, in which case they are all
// submitted at once. An expect clause checks:
//
//   - error: every run was rejected with this code
//   - outcomes: exact count per outcome ("ok" or a rejection code)
//   - index / vote: the accepted run with the highest seq returned this value
//
// Without an expect clause every run must be accepted.
//
// # Assertion Types
//
//   - final_state: registry header fields (owner, initialized, total_entries, entries)
//   - entry: fields of one entry (submitter, link, vote)
//   - trace_count: number of trace events for a command, optionally by outcome
//   - trace_order: commands first appear in the given order
//
// After the steps the harness also replays the store's command log and
// fails the scenario if the replayed state diverges from the stored one.
//
// # Golden Traces
//
// RunWithGolden compares the canonical JSON trace and final state against
// testdata/golden/<name>.golden. Accepted events of a parallel step are
// recorded in seq order followed by its rejections, so golden traces stay
// stable as long as the parallel copies are identical commands.
//
//	go test ./internal/harness -update
package harness
