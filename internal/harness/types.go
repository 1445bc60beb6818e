package harness

import "github.com/roach88/linkboard/internal/ir"

// TraceEvent is one submitted command and its outcome.
// Seq is 0 for rejected commands; rejections never consume a seq.
type TraceEvent struct {
	Seq      int64          `json:"seq"`
	Command  string         `json:"command"`
	Registry string         `json:"registry"`
	Caller   string         `json:"caller"`
	Args     map[string]any `json:"args"`
	Outcome  string         `json:"outcome"` // "ok" or a rejection code
	Result   map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every submitted command in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final state of every registry the scenario touched.
	State map[string]ir.State `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.State),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
