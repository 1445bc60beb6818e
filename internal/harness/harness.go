package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
	"github.com/roach88/linkboard/internal/store"
)

// Harness holds the per-scenario engine and store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
}

// run is one submission of a step.
type run struct {
	event TraceEvent
	res   ir.Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// Execution flow:
// 1. Open an in-memory store and start an engine on it
// 2. Execute steps, validating expect clauses
// 3. Verify the command log replays to the stored state
// 4. Evaluate assertions
//
// An error is returned only when the scenario could not be executed;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := []engine.Option{
		engine.WithRequestIDGenerator(engine.NewFixedGenerator("harness-" + scenario.Name)),
	}
	if scenario.Capacity != nil {
		opts = append(opts, engine.WithCapacity(*scenario.Capacity))
	}
	eng := engine.New(st, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	h := &Harness{scenario: scenario, store: st, engine: eng}
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, id := range h.touched() {
		result.State[id] = eng.FetchState(id)
	}

	report, err := engine.VerifyReplay(ctx, st)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
	} else {
		for _, d := range report.Divergences {
			result.AddError(fmt.Sprintf("replay: registry %s: %s", d.Registry, d.Reason))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep submits a step's runs and validates its expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	cmd := ir.Command{
		Kind:     ir.CommandKind(step.Command),
		Registry: h.scenario.registryOf(step.Registry),
		Caller:   ir.Address(step.As),
		Link:     step.Link,
		Index:    step.Index,
		Delta:    step.Delta,
	}

	n := step.Repeat
	if n == 0 {
		n = 1
	}

	runs := make([]run, n)
	errs := make([]error, n)
	if step.Parallel {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				runs[i], errs[i] = h.submit(ctx, cmd)
			}(i)
		}
		wg.Wait()
		orderRuns(runs)
	} else {
		for i := 0; i < n; i++ {
			runs[i], errs[i] = h.submit(ctx, cmd)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, r := range runs {
		result.Trace = append(result.Trace, r.event)
	}
	for _, msg := range checkExpect(index, cmd, step.Expect, runs) {
		result.AddError(msg)
	}
	return nil
}

// submit runs one command. Rejections are outcomes; any other failure is
// returned as an error.
func (h *Harness) submit(ctx context.Context, cmd ir.Command) (run, error) {
	event := TraceEvent{
		Command:  string(cmd.Kind),
		Registry: cmd.Registry,
		Caller:   string(cmd.Caller),
		Args:     cmd.Args(),
	}

	rec, err := h.engine.Submit(ctx, cmd)
	if err != nil {
		if !registry.IsRejection(err) {
			return run{}, fmt.Errorf("%s: %w", cmd, err)
		}
		event.Outcome = string(registry.CodeOf(err))
		return run{event: event}, nil
	}

	event.Seq = rec.Seq
	event.Outcome = OutcomeOK
	event.Result = rec.Result.Fields(cmd.Kind)
	return run{event: event, res: rec.Result}, nil
}

// orderRuns sorts accepted runs by seq, followed by rejections in a stable
// order.
func orderRuns(runs []run) {
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i].event, runs[j].event
		if (a.Seq == 0) != (b.Seq == 0) {
			return a.Seq != 0
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.Outcome < b.Outcome
	})
}

// checkExpect validates a step's runs against its expect clause.
func checkExpect(index int, cmd ir.Command, expect *Expect, runs []run) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %d %s: ", index, cmd)+fmt.Sprintf(format, args...))
	}

	outcomes := make(map[string]int)
	var last *run
	for i := range runs {
		outcomes[runs[i].event.Outcome]++
		if runs[i].event.Seq != 0 && (last == nil || runs[i].event.Seq > last.event.Seq) {
			last = &runs[i]
		}
	}

	if expect == nil {
		if outcomes[OutcomeOK] != len(runs) {
			fail("expected success, got outcomes %v", outcomes)
		}
		return errs
	}

	if expect.Error != "" && outcomes[expect.Error] != len(runs) {
		fail("expected %s, got outcomes %v", expect.Error, outcomes)
	}

	if expect.Outcomes != nil {
		for outcome, want := range expect.Outcomes {
			if outcomes[outcome] != want {
				fail("expected %d %s outcomes, got %d", want, outcome, outcomes[outcome])
			}
		}
		for outcome, got := range outcomes {
			if _, ok := expect.Outcomes[outcome]; !ok {
				fail("unexpected outcome %s (%d times)", outcome, got)
			}
		}
	} else if expect.Error == "" && outcomes[OutcomeOK] != len(runs) {
		fail("expected success, got outcomes %v", outcomes)
	}

	if expect.Index != nil || expect.Vote != nil {
		if last == nil {
			fail("expected an accepted run, got outcomes %v", outcomes)
			return errs
		}
		if expect.Index != nil && last.res.Index != *expect.Index {
			fail("expected index %d, got %d", *expect.Index, last.res.Index)
		}
		if expect.Vote != nil && last.res.Vote != *expect.Vote {
			fail("expected vote %d, got %d", *expect.Vote, last.res.Vote)
		}
	}
	return errs
}

// touched returns every registry named by a step or assertion, sorted.
func (h *Harness) touched() []string {
	seen := make(map[string]bool)
	for _, st := range h.scenario.Steps {
		seen[h.scenario.registryOf(st.Registry)] = true
	}
	for _, a := range h.scenario.Assertions {
		if a.Type == AssertFinalState || a.Type == AssertEntry {
			seen[h.scenario.registryOf(a.Registry)] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
