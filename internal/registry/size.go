package registry

import "github.com/roach88/linkboard/internal/ir"

// DefaultCapacity is the byte budget of a record when none is configured.
const DefaultCapacity = 9000

// Layout sizes, in bytes. A record is laid out as a fixed discriminator, the
// entry counter, the length-prefixed owner and the length-prefixed entry list.
const (
	discriminatorSize = 8
	counterSize       = 8
	lengthPrefixSize  = 4
	voteSize          = 4
)

// HeaderSize returns the encoded size of a record with no entries.
func HeaderSize(owner ir.Address) int {
	return discriminatorSize + counterSize + lengthPrefixSize + len(owner) + lengthPrefixSize
}

// EntrySize returns the encoded size of one entry.
func EntrySize(submitter ir.Address, link string) int {
	return lengthPrefixSize + len(link) + lengthPrefixSize + len(submitter) + voteSize
}
