package ir

import "fmt"

// CommandKind names one of the three commands that may mutate a registry.
type CommandKind string

const (
	CommandCreate  CommandKind = "create"
	CommandAddLink CommandKind = "add_link"
	CommandVote    CommandKind = "vote"
)

// Valid reports whether k is a known command kind.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandCreate, CommandAddLink, CommandVote:
		return true
	}
	return false
}

// Command is a request to mutate a registry.
// Link is used by add_link; Index and Delta by vote.
type Command struct {
	Kind     CommandKind `json:"kind"`
	Registry string      `json:"registry"`
	Caller   Address     `json:"caller"`
	Link     string      `json:"link,omitempty"`
	Index    uint64      `json:"index,omitempty"`
	Delta    int64       `json:"delta,omitempty"`
}

// Args returns the kind-specific arguments as a canonical-JSON-ready map.
func (c Command) Args() map[string]any {
	switch c.Kind {
	case CommandAddLink:
		return map[string]any{"link": c.Link}
	case CommandVote:
		return map[string]any{
			"index": c.Index,
			"delta": c.Delta,
		}
	default:
		return map[string]any{}
	}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandAddLink:
		return fmt.Sprintf("%s(%s, %q)", c.Kind, c.Registry, c.Link)
	case CommandVote:
		return fmt.Sprintf("%s(%s, #%d, %+d)", c.Kind, c.Registry, c.Index, c.Delta)
	default:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Registry)
	}
}

// Result is the outcome of an accepted command.
// Index is set for add_link, Vote for vote.
type Result struct {
	Index uint64 `json:"index,omitempty"`
	Vote  int64  `json:"vote,omitempty"`
}

// Fields returns the kind-specific result fields as a canonical-JSON-ready map.
func (r Result) Fields(kind CommandKind) map[string]any {
	switch kind {
	case CommandAddLink:
		return map[string]any{"index": r.Index}
	case CommandVote:
		return map[string]any{"vote": r.Vote}
	default:
		return map[string]any{}
	}
}

// CommandRecord is an accepted command as written to the command log.
type CommandRecord struct {
	Seq       int64   `json:"seq"`        // Logical clock
	ID        string  `json:"id"`         // Content-addressed hash
	RequestID string  `json:"request_id"` // Caller-facing correlation token
	Command   Command `json:"command"`
	Result    Result  `json:"result"`
}
