package services

import (
	"errors"
)

// Error kinds. Match them with errors.Is.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("unprocessable entity")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// Error is a service failure with a client-facing message. Message is safe
// to return to callers; Err is for logs only.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func conflict(message string) error {
	return newError(ErrConflict, message, nil)
}

func unauthorized(message string, cause error) error {
	return newError(ErrUnauthorized, message, cause)
}

func badRequest(message string) error {
	return newError(ErrBadRequest, message, nil)
}

func validation(message string, cause error) error {
	return newError(ErrValidation, message, cause)
}

func notFound(message string) error {
	return newError(ErrNotFound, message, nil)
}

func internal(cause error) error {
	return newError(ErrInternal, "Internal Server Error", cause)
}

// Message returns the client-facing message carried by err, or a generic
// one when err is not a service error.
func Message(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return "Internal Server Error"
}
