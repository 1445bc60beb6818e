package ir

// DefaultRegistry is the registry ID used when a caller does not name one.
const DefaultRegistry = "default"

// Address is a caller identity as handed over by the identity provider
// (typically a base58 wallet public key). It is opaque to the registry.
type Address string

// Entry is one submitted link.
// Only Vote changes after the entry is appended.
type Entry struct {
	Index     uint64  `json:"index"`
	Submitter Address `json:"submitter"`
	Link      string  `json:"link"`
	Vote      int64   `json:"vote"`
}

// State is a point-in-time copy of one registry record.
type State struct {
	Registry     string  `json:"registry"`
	Owner        Address `json:"owner,omitempty"`
	Initialized  bool    `json:"initialized"`
	TotalEntries uint64  `json:"total_entries"`
	Entries      []Entry `json:"entries"`
}

// EmptyState returns the state of a registry that was never created.
func EmptyState(registry string) State {
	return State{
		Registry: registry,
		Entries:  []Entry{},
	}
}

// Clone returns a deep copy. Entries is never nil on the copy.
func (s State) Clone() State {
	out := s
	out.Entries = make([]Entry, len(s.Entries))
	copy(out.Entries, s.Entries)
	return out
}
