package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a user-facing input error. Err's message is shown as is.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// PermissionError is returned when the caller's role or ownership does not grant access to a resource.
type PermissionError struct {
	message string
}

func NewPermissionError(msg string) *PermissionError {
	return &PermissionError{message: msg}
}

func (err PermissionError) Error() string {
	return err.message
}

func IsPermissionError(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

// ShutdownError reports a failure the process cannot recover from, eg. a closed database pool.
// The API stops gracefully when a request ends with one.
type ShutdownError struct {
	Err error
	Op  string
}

func NewShutdownError(err error, op string) error {
	return &ShutdownError{Err: err, Op: op}
}

func (err ShutdownError) Error() string {
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err ShutdownError) Unwrap() error { return err.Err }

func IsShutdown(err error) bool {
	var sErr *ShutdownError
	return errors.As(err, &sErr)
}
