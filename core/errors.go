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

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// PermissionError is a backend access-policy rejection. Call sites surface it
// to the caller and publish it on the realtime hub for diagnostics.
type PermissionError struct {
	Path string // document path, e.g. "quizSubmissions/<id>"
	Op   string // attempted operation: get|list|create|update|delete
}

func NewPermissionError(path, op string) error {
	return &PermissionError{Path: path, Op: op}
}

func (err PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s", err.Op, err.Path)
}

func IsPermissionDenied(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
