package registry

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes rejected commands.
type ErrorCode string

const (
	// ErrCodeAlreadyInitialized indicates Create on an active record.
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// ErrCodeNotInitialized indicates Append or AdjustVote before Create.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrCodeIndexOutOfRange indicates a vote on an index with no entry.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeInvalidDelta indicates a vote delta outside {-1, +1}.
	ErrCodeInvalidDelta ErrorCode = "INVALID_DELTA"

	// ErrCodeEmptyLink indicates an add_link with an empty link.
	ErrCodeEmptyLink ErrorCode = "EMPTY_LINK"

	// ErrCodeMissingIdentity indicates a command without a caller identity.
	ErrCodeMissingIdentity ErrorCode = "MISSING_IDENTITY"

	// ErrCodeCapacityExceeded indicates an append that would overflow the
	// record's byte capacity.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
)

// Error is a rejected command. Rejections never change the record.
type Error struct {
	// Code identifies the rejection category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Registry identifies the affected record.
	Registry string

	// Index is the entry index for INDEX_OUT_OF_RANGE.
	Index uint64

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Registry != "" {
		return fmt.Sprintf("%s: %s (registry=%s)", e.Code, e.Message, e.Registry)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the rejection code carried by err, or "" if err is not a
// rejection. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsRejection returns true if err is a registry rejection of any kind.
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

// IsAlreadyInitialized returns true if err is an ALREADY_INITIALIZED rejection.
func IsAlreadyInitialized(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyInitialized
}

// IsNotInitialized returns true if err is a NOT_INITIALIZED rejection.
func IsNotInitialized(err error) bool {
	return CodeOf(err) == ErrCodeNotInitialized
}

// IsIndexOutOfRange returns true if err is an INDEX_OUT_OF_RANGE rejection.
func IsIndexOutOfRange(err error) bool {
	return CodeOf(err) == ErrCodeIndexOutOfRange
}

// IsInvalidDelta returns true if err is an INVALID_DELTA rejection.
func IsInvalidDelta(err error) bool {
	return CodeOf(err) == ErrCodeInvalidDelta
}

// IsCapacityExceeded returns true if err is a CAPACITY_EXCEEDED rejection.
func IsCapacityExceeded(err error) bool {
	return CodeOf(err) == ErrCodeCapacityExceeded
}

// NewAlreadyInitializedError creates an Error for a repeated Create.
func NewAlreadyInitializedError(registry string) *Error {
	return &Error{
		Code:     ErrCodeAlreadyInitialized,
		Message:  "registry is already initialized",
		Registry: registry,
	}
}

// NewNotInitializedError creates an Error for a command issued before Create.
func NewNotInitializedError(registry string) *Error {
	return &Error{
		Code:     ErrCodeNotInitialized,
		Message:  "registry has not been created",
		Registry: registry,
	}
}

// NewIndexOutOfRangeError creates an Error for a vote on a missing entry.
func NewIndexOutOfRangeError(registry string, index uint64, length int) *Error {
	return &Error{
		Code:     ErrCodeIndexOutOfRange,
		Message:  fmt.Sprintf("index %d out of range (entries=%d)", index, length),
		Registry: registry,
		Index:    index,
		Details: map[string]string{
			"index":   fmt.Sprintf("%d", index),
			"entries": fmt.Sprintf("%d", length),
		},
	}
}

// NewInvalidDeltaError creates an Error for a delta outside {-1, +1}.
func NewInvalidDeltaError(registry string, delta int64) *Error {
	return &Error{
		Code:     ErrCodeInvalidDelta,
		Message:  fmt.Sprintf("vote delta must be -1 or +1, got %d", delta),
		Registry: registry,
		Details:  map[string]string{"delta": fmt.Sprintf("%d", delta)},
	}
}

// NewEmptyLinkError creates an Error for an empty link.
func NewEmptyLinkError(registry string) *Error {
	return &Error{
		Code:     ErrCodeEmptyLink,
		Message:  "link must not be empty",
		Registry: registry,
	}
}

// NewMissingIdentityError creates an Error for a command without a caller.
func NewMissingIdentityError(registry string) *Error {
	return &Error{
		Code:     ErrCodeMissingIdentity,
		Message:  "caller identity is required",
		Registry: registry,
	}
}

// NewCapacityExceededError creates an Error for an append past capacity.
func NewCapacityExceededError(registry string, needed, capacity int) *Error {
	return &Error{
		Code:     ErrCodeCapacityExceeded,
		Message:  fmt.Sprintf("record would need %d bytes (capacity %d)", needed, capacity),
		Registry: registry,
		Details: map[string]string{
			"needed":   fmt.Sprintf("%d", needed),
			"capacity": fmt.Sprintf("%d", capacity),
		},
	}
}
