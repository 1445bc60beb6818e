package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// ReplaySource provides the command log and the stored projection.
// Implemented by *store.Store.
type ReplaySource interface {
	ReadCommands(ctx context.Context) ([]ir.CommandRecord, error)
	ReadAllStates(ctx context.Context) ([]ir.State, error)
}

// Divergence describes one registry whose replayed state differs from the
// stored projection.
type Divergence struct {
	Registry string `json:"registry"`
	Reason   string `json:"reason"`
	Stored   string `json:"stored_hash,omitempty"`
	Replayed string `json:"replayed_hash,omitempty"`
}

// ReplayReport is the outcome of VerifyReplay.
type ReplayReport struct {
	Commands    int          `json:"commands"`
	Registries  int          `json:"registries"`
	Divergences []Divergence `json:"divergences"`
}

// OK reports whether the replay matched the stored projection.
func (r ReplayReport) OK() bool {
	return len(r.Divergences) == 0
}

// Replay rebuilds registry states from a command log.
//
// Commands must be ordered by strictly increasing seq. Each command is
// re-applied to a fresh record without a capacity limit and its outcome must
// match the logged result; the first mismatch is returned as an error.
func Replay(cmds []ir.CommandRecord) (map[string]ir.State, error) {
	records := make(map[string]*registry.Record)
	var last int64

	for _, cr := range cmds {
		if cr.Seq <= last {
			return nil, fmt.Errorf("replay: seq %d after %d", cr.Seq, last)
		}
		last = cr.Seq

		rec, ok := records[cr.Command.Registry]
		if !ok {
			rec = registry.New(cr.Command.Registry, registry.WithCapacity(0))
			records[cr.Command.Registry] = rec
		}

		res, err := apply(rec, cr.Command)
		if err != nil {
			return nil, fmt.Errorf("replay seq %d %s: %w", cr.Seq, cr.Command, err)
		}
		if res != cr.Result {
			return nil, fmt.Errorf("replay seq %d %s: result %+v, logged %+v",
				cr.Seq, cr.Command, res, cr.Result)
		}
	}

	states := make(map[string]ir.State, len(records))
	for id, rec := range records {
		states[id] = rec.Snapshot()
	}
	return states, nil
}

// VerifyReplay replays the full command log and compares every registry
// against the stored projection.
func VerifyReplay(ctx context.Context, src ReplaySource) (ReplayReport, error) {
	cmds, err := src.ReadCommands(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify replay: %w", err)
	}
	stored, err := src.ReadAllStates(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify replay: %w", err)
	}

	replayed, err := Replay(cmds)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("verify replay: %w", err)
	}

	report := ReplayReport{
		Commands:    len(cmds),
		Divergences: []Divergence{},
	}

	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		seen[s.Registry] = true
		r, ok := replayed[s.Registry]
		if !ok {
			report.Divergences = append(report.Divergences, Divergence{
				Registry: s.Registry,
				Reason:   "stored registry has no commands",
			})
			continue
		}
		d, err := compareStates(s, r)
		if err != nil {
			return ReplayReport{}, fmt.Errorf("verify replay: %w", err)
		}
		if d != nil {
			report.Divergences = append(report.Divergences, *d)
		}
	}

	missing := make([]string, 0)
	for id := range replayed {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	for _, id := range missing {
		report.Divergences = append(report.Divergences, Divergence{
			Registry: id,
			Reason:   "replayed registry missing from store",
		})
	}

	report.Registries = len(seen) + len(missing)
	return report, nil
}

// compareStates checks the two states field by field, so links and
// identities must match byte for byte. The hashes are reported for context.
func compareStates(stored, replayed ir.State) (*Divergence, error) {
	if sameState(stored, replayed) {
		return nil, nil
	}
	sh, err := ir.StateHash(stored)
	if err != nil {
		return nil, err
	}
	rh, err := ir.StateHash(replayed)
	if err != nil {
		return nil, err
	}
	reason := "state hash mismatch"
	if sh == rh {
		// Only invalid UTF-8 collides: every bad byte encodes as \ufffd.
		reason = "state bytes mismatch"
	}
	return &Divergence{
		Registry: stored.Registry,
		Reason:   reason,
		Stored:   sh,
		Replayed: rh,
	}, nil
}

func sameState(a, b ir.State) bool {
	if a.Registry != b.Registry || a.Owner != b.Owner ||
		a.Initialized != b.Initialized || a.TotalEntries != b.TotalEntries ||
		len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if a.Entries[i] != b.Entries[i] {
			return false
		}
	}
	return true
}
