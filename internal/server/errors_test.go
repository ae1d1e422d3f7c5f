package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatError(t *testing.T) {
	cause := errors.New("connection refused")

	tcs := []struct {
		name     string
		err      error
		sentinel error
		message  string
		text     string
	}{
		{
			name:     "authentication",
			err:      NewAuthenticationError(cause),
			sentinel: ErrAuthentication,
			message:  "unauthorized",
			text:     "unauthorized: connection refused",
		},
		{
			name:     "authorization",
			err:      NewAuthorizationError("you can only delete your own messages"),
			sentinel: ErrAuthorization,
			message:  "you can only delete your own messages",
			text:     "you can only delete your own messages",
		},
		{
			name:     "not found wrapped",
			err:      fmt.Errorf("delete: %w", NewNotFoundError("message not found")),
			sentinel: ErrNotFound,
			message:  "message not found",
			text:     "delete: message not found",
		},
		{
			name:     "validation",
			err:      NewValidationError("text message type cannot have files"),
			sentinel: ErrValidation,
			message:  "text message type cannot have files",
			text:     "text message type cannot have files",
		},
		{
			name:     "conflict",
			err:      NewConflictError("too many connections"),
			sentinel: ErrConflict,
			message:  "too many connections",
			text:     "too many connections",
		},
		{
			name:     "internal",
			err:      NewInternalError(cause),
			sentinel: ErrInternal,
			message:  "internal server error",
			text:     "internal server error: connection refused",
		},
		{
			name:     "plain error",
			err:      cause,
			sentinel: ErrInternal,
			message:  "internal server error",
			text:     "connection refused",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.message, asChatError(tc.err).Message)
			assert.Equal(t, tc.text, tc.err.Error())
			if _, ok := tc.err.(*ChatError); ok || errors.Unwrap(tc.err) != nil {
				assert.ErrorIs(t, tc.err, tc.sentinel)
			}
		})
	}

	assert.NotErrorIs(t, NewValidationError("x"), ErrAuthorization)
	assert.ErrorIs(t, NewInternalError(cause), cause)
}
