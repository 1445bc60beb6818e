package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/linkboard/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s(%s) as %s %v -> %s\n",
				i+1, event.Seq, event.Command, event.Registry, event.Caller, event.Args, event.Outcome)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every scenario assertion against a result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, scenario *Scenario) []string {
	var failures []string
	for i, a := range scenario.Assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(result.State[scenario.registryOf(a.Registry)], a)
		case AssertEntry:
			err = assertEntry(result.State[scenario.registryOf(a.Registry)], a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertFinalState checks registry header fields using subset semantics.
// Supported keys: owner, initialized, total_entries, entries (count).
func assertFinalState(s ir.State, a Assertion) error {
	actual := map[string]any{
		"owner":         string(s.Owner),
		"initialized":   s.Initialized,
		"total_entries": s.TotalEntries,
		"entries":       len(s.Entries),
	}
	return matchFields(AssertFinalState, s.Registry, actual, a.Expect)
}

// assertEntry checks fields of one entry using subset semantics.
// Supported keys: submitter, link, vote.
func assertEntry(s ir.State, a Assertion) error {
	idx := *a.Index
	if idx >= uint64(len(s.Entries)) {
		return &AssertionError{
			Type:     AssertEntry,
			Expected: fmt.Sprintf("entry %d in %s", idx, s.Registry),
			Actual:   fmt.Sprintf("%d entries", len(s.Entries)),
		}
	}
	e := s.Entries[idx]
	actual := map[string]any{
		"submitter": string(e.Submitter),
		"link":      e.Link,
		"vote":      e.Vote,
	}
	return matchFields(AssertEntry, fmt.Sprintf("%s#%d", s.Registry, idx), actual, a.Expect)
}

// assertTraceCount checks the number of trace events for a command.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Command != a.Command {
			continue
		}
		if a.Outcome != "" && event.Outcome != a.Outcome {
			continue
		}
		count++
	}

	if count != a.Count {
		what := a.Command
		if a.Outcome != "" {
			what += " with outcome " + a.Outcome
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that commands first appear in the given order.
// Intervening commands are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Command] == 0 {
			positions[event.Command] = i + 1 // 1-indexed for readability
		}
	}

	for _, cmd := range a.Commands {
		if positions[cmd] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all commands present: %v", a.Commands),
				Actual:   fmt.Sprintf("missing command: %s", cmd),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Commands); i++ {
		prev, curr := a.Commands[i-1], a.Commands[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %v", a.Commands),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// matchFields compares expected values against actual ones.
// Unknown expected keys fail the assertion.
func matchFields(kind, subject string, actual, expected map[string]any) error {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("field %s on %s", key, subject),
				Actual:   "no such field",
			}
		}
		if !valuesEqual(got, want) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s = %v", subject, key, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// valuesEqual compares an actual value with a YAML-decoded expected one.
// Integers compare by value regardless of their Go type.
func valuesEqual(actual, expected any) bool {
	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}
	return actual == expected
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
