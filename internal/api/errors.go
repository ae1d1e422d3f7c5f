package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-messenger/internal/server"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(statusCode int) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    lower(http.StatusText(statusCode)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewRequestTooLargeError() *ApiError {
	return newApiError(http.StatusRequestEntityTooLarge)
}

// withMessage replaces the default status text.
func (e *ApiError) withMessage(msg string) *ApiError {
	e.Message = msg
	return e
}

var chatErrorStatus = map[server.ErrorKind]int{
	server.KindAuthentication: http.StatusUnauthorized,
	server.KindAuthorization:  http.StatusForbidden,
	server.KindNotFound:       http.StatusNotFound,
	server.KindValidation:     http.StatusBadRequest,
	server.KindConflict:       http.StatusConflict,
}

// fromError maps a gateway error onto an HTTP error. Anything that is not a
// ChatError with a known kind becomes a 500.
func fromError(err error) *ApiError {
	var ce *server.ChatError
	if errors.As(err, &ce) {
		if status, ok := chatErrorStatus[ce.Kind]; ok {
			return &ApiError{StatusCode: status, Message: ce.Message, Err: ce.Err}
		}
	}

	return NewInternalServerError(err)
}
