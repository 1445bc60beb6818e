package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewIndexOutOfRangeError("default", 5, 2)
	assert.Equal(t, "INDEX_OUT_OF_RANGE: index 5 out of range (entries=2) (registry=default)", err.Error())
	assert.Equal(t, "5", err.Details["index"])
	assert.Equal(t, "2", err.Details["entries"])

	bare := &Error{Code: ErrCodeEmptyLink, Message: "link must not be empty"}
	assert.Equal(t, "EMPTY_LINK: link must not be empty", bare.Error())
}

func TestPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewNotInitializedError("default"))

	assert.True(t, IsNotInitialized(wrapped))
	assert.True(t, IsRejection(wrapped))
	assert.False(t, IsAlreadyInitialized(wrapped))
	assert.Equal(t, ErrCodeNotInitialized, CodeOf(wrapped))
}

func TestPredicatesOnForeignErrors(t *testing.T) {
	err := errors.New("disk full")
	assert.False(t, IsRejection(err))
	assert.Equal(t, ErrorCode(""), CodeOf(err))
	assert.False(t, IsRejection(nil))
}

func TestConstructorsSetCodes(t *testing.T) {
	tests := []struct {
		err  *Error
		code ErrorCode
	}{
		{NewAlreadyInitializedError("r"), ErrCodeAlreadyInitialized},
		{NewNotInitializedError("r"), ErrCodeNotInitialized},
		{NewIndexOutOfRangeError("r", 1, 0), ErrCodeIndexOutOfRange},
		{NewInvalidDeltaError("r", 3), ErrCodeInvalidDelta},
		{NewEmptyLinkError("r"), ErrCodeEmptyLink},
		{NewMissingIdentityError("r"), ErrCodeMissingIdentity},
		{NewCapacityExceededError("r", 10, 5), ErrCodeCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, "r", tt.err.Registry)
		})
	}
}
