package registry

import (
	"fmt"
	"strings"

	"github.com/roach88/linkboard/internal/ir"
)

// Record is the authoritative state of one registry.
type Record struct {
	id          string
	owner       ir.Address
	initialized bool
	entries     []ir.Entry
	total       uint64 // Mirrors len(entries); checked after every append
	capacity    int    // Byte budget, 0 = unlimited
	size        int    // Current encoded size in bytes
}

// Option configures a Record.
type Option func(*Record)

// WithCapacity sets the record's byte budget. Zero means unlimited.
func WithCapacity(bytes int) Option {
	return func(r *Record) {
		r.capacity = bytes
	}
}

// New creates an uninitialized record.
func New(id string, opts ...Option) *Record {
	r := &Record{
		id:       id,
		entries:  []ir.Entry{},
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromState rebuilds a record from a persisted state.
// Returns an error if the state breaks the dense-index invariant; persisted
// data is checked, not trusted.
func FromState(s ir.State, opts ...Option) (*Record, error) {
	r := New(s.Registry, opts...)
	if !s.Initialized {
		if len(s.Entries) > 0 {
			return nil, fmt.Errorf("registry %s: uninitialized state has %d entries", s.Registry, len(s.Entries))
		}
		return r, nil
	}
	if s.TotalEntries != uint64(len(s.Entries)) {
		return nil, fmt.Errorf("registry %s: total_entries=%d but %d entries", s.Registry, s.TotalEntries, len(s.Entries))
	}
	for i, e := range s.Entries {
		if e.Index != uint64(i) {
			return nil, fmt.Errorf("registry %s: entry at position %d has index %d", s.Registry, i, e.Index)
		}
	}
	r.restore(s)
	return r, nil
}

// ID returns the registry ID.
func (r *Record) ID() string { return r.id }

// Initialized reports whether Create has succeeded.
func (r *Record) Initialized() bool { return r.initialized }

// Len returns the number of entries.
func (r *Record) Len() int { return len(r.entries) }

// Size returns the current encoded size in bytes.
func (r *Record) Size() int { return r.size }

// Capacity returns the byte budget, 0 meaning unlimited.
func (r *Record) Capacity() int { return r.capacity }

// Create initializes the record with its owner.
// Returns ALREADY_INITIALIZED if Create has already succeeded.
func (r *Record) Create(owner ir.Address) error {
	if r.initialized {
		return NewAlreadyInitializedError(r.id)
	}
	size := HeaderSize(owner)
	if r.capacity > 0 && size > r.capacity {
		return NewCapacityExceededError(r.id, size, r.capacity)
	}

	r.initialized = true
	r.owner = owner
	r.entries = []ir.Entry{}
	r.total = 0
	r.size = size
	return nil
}

// Append adds an entry with the next dense index and a zero vote.
// Identical links and submitters are allowed.
func (r *Record) Append(submitter ir.Address, link string) (uint64, error) {
	if !r.initialized {
		return 0, NewNotInitializedError(r.id)
	}
	size := r.size + EntrySize(submitter, link)
	if r.capacity > 0 && size > r.capacity {
		return 0, NewCapacityExceededError(r.id, size, r.capacity)
	}

	index := uint64(len(r.entries))
	r.entries = append(r.entries, ir.Entry{
		Index:     index,
		Submitter: submitter,
		Link:      link,
		Vote:      0,
	})
	r.total++
	r.size = size

	if r.total != uint64(len(r.entries)) || r.entries[index].Index != index {
		panic(fmt.Sprintf("registry %s: invariant violated: total=%d entries=%d index=%d",
			r.id, r.total, len(r.entries), index))
	}
	return index, nil
}

// AdjustVote adds delta to the vote of the entry at index and returns the
// new tally. Votes are never set absolutely.
func (r *Record) AdjustVote(index uint64, delta int64) (int64, error) {
	if !r.initialized {
		return 0, NewNotInitializedError(r.id)
	}
	if err := ValidateDelta(r.id, delta); err != nil {
		return 0, err
	}
	if index >= uint64(len(r.entries)) {
		return 0, NewIndexOutOfRangeError(r.id, index, len(r.entries))
	}

	r.entries[index].Vote += delta
	return r.entries[index].Vote, nil
}

// Snapshot returns an immutable copy of the record.
func (r *Record) Snapshot() ir.State {
	s := ir.State{
		Registry:     r.id,
		Owner:        r.owner,
		Initialized:  r.initialized,
		TotalEntries: r.total,
		Entries:      make([]ir.Entry, len(r.entries)),
	}
	copy(s.Entries, r.entries)
	return s
}

// Restore resets the record to a previously taken snapshot. The engine uses
// it to undo an applied mutation whose persistence failed.
func (r *Record) Restore(s ir.State) {
	if s.Registry != r.id {
		panic(fmt.Sprintf("registry %s: restore from snapshot of %s", r.id, s.Registry))
	}
	r.restore(s)
}

func (r *Record) restore(s ir.State) {
	r.owner = s.Owner
	r.initialized = s.Initialized
	r.entries = make([]ir.Entry, len(s.Entries))
	copy(r.entries, s.Entries)
	r.total = uint64(len(s.Entries))
	r.size = 0
	if r.initialized {
		r.size = HeaderSize(r.owner)
		for _, e := range r.entries {
			r.size += EntrySize(e.Submitter, e.Link)
		}
	}
}

// ValidateDelta rejects vote deltas outside {-1, +1}.
func ValidateDelta(registry string, delta int64) error {
	if delta != 1 && delta != -1 {
		return NewInvalidDeltaError(registry, delta)
	}
	return nil
}

// ValidateLink rejects empty links. Any other string is stored as given.
func ValidateLink(registry, link string) error {
	if link == "" {
		return NewEmptyLinkError(registry)
	}
	return nil
}

// ValidateIdentity rejects commands without a caller identity.
func ValidateIdentity(registry string, caller ir.Address) error {
	if strings.TrimSpace(string(caller)) == "" {
		return NewMissingIdentityError(registry)
	}
	return nil
}
