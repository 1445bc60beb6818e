package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/linkboard/internal/ir"
)

// marshalArgs converts a command's arguments to JSON TEXT. Links are kept
// byte for byte so replay rebuilds exactly what was appended.
func marshalArgs(cmd ir.Command) (string, error) {
	data, err := ir.MarshalVerbatim(cmd.Args())
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// marshalResult converts a command result to JSON TEXT.
func marshalResult(kind ir.CommandKind, res ir.Result) (string, error) {
	data, err := ir.MarshalVerbatim(res.Fields(kind))
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// storedArgs is the union of all command argument fields.
type storedArgs struct {
	Link  string `json:"link"`
	Index uint64 `json:"index"`
	Delta int64  `json:"delta"`
}

// unmarshalArgs fills the kind-specific fields of cmd from canonical JSON.
func unmarshalArgs(data string, cmd *ir.Command) error {
	if data == "" || data == "{}" {
		return nil
	}
	var args storedArgs
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	switch cmd.Kind {
	case ir.CommandAddLink:
		cmd.Link = args.Link
	case ir.CommandVote:
		cmd.Index = args.Index
		cmd.Delta = args.Delta
	}
	return nil
}

// unmarshalResult parses canonical JSON TEXT to a Result.
func unmarshalResult(data string) (ir.Result, error) {
	var res ir.Result
	if data == "" || data == "{}" {
		return res, nil
	}
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return ir.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}
