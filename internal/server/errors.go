package server

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindValidation     ErrorKind = "validation"
	KindConflict       ErrorKind = "conflict"
	KindInternal       ErrorKind = "internal"
)

// ChatError is returned by gateway operations. Message is safe to show to the
// originating client; Err carries the underlying cause for logs.
type ChatError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any ChatError of the same kind.
var (
	ErrAuthentication = &ChatError{Kind: KindAuthentication}
	ErrAuthorization  = &ChatError{Kind: KindAuthorization}
	ErrNotFound       = &ChatError{Kind: KindNotFound}
	ErrValidation     = &ChatError{Kind: KindValidation}
	ErrConflict       = &ChatError{Kind: KindConflict}
	ErrInternal       = &ChatError{Kind: KindInternal}
)

func (e *ChatError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}

	return msg
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func NewAuthenticationError(err error) *ChatError {
	return &ChatError{Kind: KindAuthentication, Message: "unauthorized", Err: err}
}

func NewAuthorizationError(msg string) *ChatError {
	return &ChatError{Kind: KindAuthorization, Message: msg}
}

func NewNotFoundError(msg string) *ChatError {
	return &ChatError{Kind: KindNotFound, Message: msg}
}

func NewValidationError(msg string) *ChatError {
	return &ChatError{Kind: KindValidation, Message: msg}
}

func NewConflictError(msg string) *ChatError {
	return &ChatError{Kind: KindConflict, Message: msg}
}

func NewInternalError(err error) *ChatError {
	return &ChatError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// asChatError converts any error into a ChatError, treating unknown errors as
// internal.
func asChatError(err error) *ChatError {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce
	}
	return NewInternalError(err)
}
