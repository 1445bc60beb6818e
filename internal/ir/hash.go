package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCommand = "linkboard/command/v1"
	DomainState   = "linkboard/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandID computes the content-addressed ID of an accepted command.
// The request ID is excluded: it identifies the transport round-trip, not
// what happened to the registry.
func CommandID(cmd Command, seq int64) (string, error) {
	obj := map[string]any{
		"registry": cmd.Registry,
		"kind":     string(cmd.Kind),
		"caller":   string(cmd.Caller),
		"args":     cmd.Args(),
		"seq":      seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CommandID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainCommand, canonical), nil
}

// MustCommandID is like CommandID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommandID(cmd Command, seq int64) string {
	id, err := CommandID(cmd, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// StateHash computes a digest of a registry state over its verbatim
// encoding, so NFC-equivalent links hash differently.
func StateHash(s State) (string, error) {
	entries := make([]any, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = map[string]any{
			"index":     e.Index,
			"submitter": string(e.Submitter),
			"link":      e.Link,
			"vote":      e.Vote,
		}
	}
	obj := map[string]any{
		"registry":      s.Registry,
		"owner":         string(s.Owner),
		"initialized":   s.Initialized,
		"total_entries": s.TotalEntries,
		"entries":       entries,
	}

	canonical, err := MarshalVerbatim(obj)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}
