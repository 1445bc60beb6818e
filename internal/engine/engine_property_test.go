package engine

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// TestEngine_MatchesModel_Property drives the engine with random command
// sequences and checks every outcome against a plain-slice model.
func TestEngine_MatchesModel_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e := New(nil, WithCapacity(0))
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.Run(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()

		var (
			initialized bool
			owner       ir.Address
			votes       []int64
		)

		callers := rapid.SampledFrom([]ir.Address{"A", "B", "C"})
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			caller := callers.Draw(rt, "caller")

			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				err := e.Create(ctx, reg, caller)
				if initialized {
					if !registry.IsAlreadyInitialized(err) {
						rt.Fatalf("second create: got %v", err)
					}
					continue
				}
				if err != nil {
					rt.Fatalf("create: %v", err)
				}
				initialized, owner = true, caller

			case 1:
				idx, err := e.AddLink(ctx, reg, caller, fmt.Sprintf("gif-%d", i))
				if !initialized {
					if !registry.IsNotInitialized(err) {
						rt.Fatalf("add before create: got %v", err)
					}
					continue
				}
				if err != nil {
					rt.Fatalf("add: %v", err)
				}
				if idx != uint64(len(votes)) {
					rt.Fatalf("index %d, want %d", idx, len(votes))
				}
				votes = append(votes, 0)

			case 2:
				index := rapid.Uint64Range(0, uint64(len(votes))+1).Draw(rt, "index")
				delta := rapid.SampledFrom([]int64{-1, 1}).Draw(rt, "delta")
				got, err := e.Vote(ctx, reg, caller, index, delta)
				switch {
				case !initialized:
					if !registry.IsNotInitialized(err) {
						rt.Fatalf("vote before create: got %v", err)
					}
				case index >= uint64(len(votes)):
					if !registry.IsIndexOutOfRange(err) {
						rt.Fatalf("vote #%d of %d: got %v", index, len(votes), err)
					}
				default:
					if err != nil {
						rt.Fatalf("vote: %v", err)
					}
					votes[index] += delta
					if got != votes[index] {
						rt.Fatalf("vote #%d = %d, want %d", index, got, votes[index])
					}
				}
			}

			s := e.FetchState(reg)
			if s.Initialized != initialized || s.Owner != owner {
				rt.Fatalf("header: got (%v, %q), want (%v, %q)", s.Initialized, s.Owner, initialized, owner)
			}
			if len(s.Entries) != len(votes) || s.TotalEntries != uint64(len(votes)) {
				rt.Fatalf("entries %d total %d, want %d", len(s.Entries), s.TotalEntries, len(votes))
			}
			for j, entry := range s.Entries {
				if entry.Index != uint64(j) || entry.Vote != votes[j] {
					rt.Fatalf("entry %d = %+v, want vote %d", j, entry, votes[j])
				}
			}
		}
	})
}
