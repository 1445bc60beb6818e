package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// Scenario is a scripted run against a fresh engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Registry is the default registry for steps and assertions.
	Registry string `yaml:"registry,omitempty"`

	// Capacity is the byte capacity of every record. Nil means the default.
	Capacity *int `yaml:"capacity,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step submits one command, possibly several times.
type Step struct {
	Command  string `yaml:"command"` // create | add_link | vote
	As       string `yaml:"as"`      // caller identity
	Registry string `yaml:"registry,omitempty"`
	Link     string `yaml:"link,omitempty"`
	Index    uint64 `yaml:"index,omitempty"`
	Delta    int64  `yaml:"delta,omitempty"`

	// Repeat submits the command this many times (default 1).
	Repeat int `yaml:"repeat,omitempty"`

	// Parallel submits all repeats concurrently.
	Parallel bool `yaml:"parallel,omitempty"`

	// Expect validates the outcome. Nil means every run must be accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the rejection code every run must fail with.
	Error string `yaml:"error,omitempty"`

	// Outcomes is the exact number of runs per outcome.
	Outcomes map[string]int `yaml:"outcomes,omitempty"`

	// Index is the expected add_link result of the last accepted run.
	Index *uint64 `yaml:"index,omitempty"`

	// Vote is the expected vote result of the last accepted run.
	Vote *int64 `yaml:"vote,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Registry defaults to the scenario registry.
	Registry string `yaml:"registry,omitempty"`

	// Index selects the entry (used by entry).
	Index *uint64 `yaml:"index,omitempty"`

	// Expect contains expected field values (final_state, entry).
	// Subset match: only listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Command is the command kind (trace_count).
	Command string `yaml:"command,omitempty"`

	// Outcome optionally filters trace_count by outcome.
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Commands is the expected command order (trace_order).
	Commands []string `yaml:"commands,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertEntry      = "entry"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// OutcomeOK marks an accepted command in traces and expect clauses.
const OutcomeOK = "ok"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// registryOf returns the registry a step or assertion targets.
func (s *Scenario) registryOf(override string) string {
	switch {
	case override != "":
		return override
	case s.Registry != "":
		return s.Registry
	default:
		return ir.DefaultRegistry
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Capacity != nil && *s.Capacity < 0 {
		return fmt.Errorf("capacity must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if !ir.CommandKind(st.Command).Valid() {
		return fmt.Errorf("steps[%d]: unknown command %q", index, st.Command)
	}
	if st.Repeat < 0 {
		return fmt.Errorf("steps[%d]: repeat must be non-negative", index)
	}
	if st.Parallel && st.Repeat < 2 {
		return fmt.Errorf("steps[%d]: parallel requires repeat >= 2", index)
	}

	e := st.Expect
	if e == nil {
		return nil
	}
	if e.Error != "" && !knownCode(e.Error) {
		return fmt.Errorf("steps[%d].expect: unknown error code %q", index, e.Error)
	}
	for outcome := range e.Outcomes {
		if outcome != OutcomeOK && !knownCode(outcome) {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, outcome)
		}
	}
	if e.Error != "" && (e.Index != nil || e.Vote != nil) {
		return fmt.Errorf("steps[%d].expect: error cannot be combined with index or vote", index)
	}
	if e.Index != nil && st.Command != string(ir.CommandAddLink) {
		return fmt.Errorf("steps[%d].expect: index only applies to add_link", index)
	}
	if e.Vote != nil && st.Command != string(ir.CommandVote) {
		return fmt.Errorf("steps[%d].expect: vote only applies to vote", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertEntry:
		if a.Index == nil {
			return fmt.Errorf("assertions[%d]: index is required for entry", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entry", index)
		}
	case AssertTraceCount:
		if !ir.CommandKind(a.Command).Valid() {
			return fmt.Errorf("assertions[%d]: unknown command %q for trace_count", index, a.Command)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownCode(code string) bool {
	switch registry.ErrorCode(code) {
	case registry.ErrCodeAlreadyInitialized,
		registry.ErrCodeNotInitialized,
		registry.ErrCodeIndexOutOfRange,
		registry.ErrCodeInvalidDelta,
		registry.ErrCodeEmptyLink,
		registry.ErrCodeMissingIdentity,
		registry.ErrCodeCapacityExceeded:
		return true
	}
	return false
}
