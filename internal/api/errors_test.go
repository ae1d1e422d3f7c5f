package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/stretchr/testify/assert"
)

func Test_fromError(t *testing.T) {
	tcs := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"authentication", server.NewAuthenticationError(errors.New("expired")), http.StatusUnauthorized, "unauthorized"},
		{"authorization", server.NewAuthorizationError("you can only delete your own messages"), http.StatusForbidden, "you can only delete your own messages"},
		{"not found", server.NewNotFoundError("message not found"), http.StatusNotFound, "message not found"},
		{"validation", server.NewValidationError("text message type cannot have files"), http.StatusBadRequest, "text message type cannot have files"},
		{"conflict", server.NewConflictError("too many connections"), http.StatusConflict, "too many connections"},
		{"internal", server.NewInternalError(errors.New("db down")), http.StatusInternalServerError, "internal server error"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := fromError(tc.err)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestApiError(t *testing.T) {
	err := NewInternalServerError(errors.New("db down"))
	assert.Equal(t, "internal server error: db down", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "db down")

	assert.Equal(t, "not found", NewNotFoundError().Error())
	assert.Equal(t, "request entity too large", NewRequestTooLargeError().Message)
}
