package harness

import (
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/linkboard/internal/ir"
)

// TraceSnapshot captures the trace and final state of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        map[string]ir.State
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":      event.Seq,
			"command":  event.Command,
			"registry": event.Registry,
			"caller":   event.Caller,
			"args":     event.Args,
			"outcome":  event.Outcome,
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}

	ids := make([]string, 0, len(s.State))
	for id := range s.State {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make(map[string]any, len(ids))
	for _, id := range ids {
		st := s.State[id]
		entries := make([]any, len(st.Entries))
		for i, e := range st.Entries {
			entries[i] = map[string]any{
				"index":     e.Index,
				"submitter": string(e.Submitter),
				"link":      e.Link,
				"vote":      e.Vote,
			}
		}
		states[id] = map[string]any{
			"owner":         string(st.Owner),
			"initialized":   st.Initialized,
			"total_entries": st.TotalEntries,
			"entries":       entries,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state":         states,
	}
}

// MarshalSnapshot renders a result as canonical JSON with strings verbatim.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	return ir.MarshalVerbatim(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace and final state
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
