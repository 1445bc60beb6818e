// Package registry holds the in-memory registry record and its primitive
// mutations.
//
// A Record moves through exactly two states:
//
//	[Uninitialized] --Create--> [Active]
//	[Active] --Append--> [Active]      (entries length + 1)
//	[Active] --AdjustVote--> [Active]  (one entry's vote mutated)
//
// Record is NOT safe for concurrent use. The engine's single-writer run loop
// is the only caller of the mutating methods; readers receive immutable
// ir.State copies from Snapshot.
//
// Every primitive checks all of its preconditions before touching the record,
// so a rejected call leaves the record exactly as it was.
package registry
