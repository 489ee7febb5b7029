// Package pipelineerr defines the tool-facing error taxonomy every handler
// classifies into at its boundary: InvalidInput, NotFound,
// DependencyUnavailable, Conflict, Canceled, Internal.
package pipelineerr

import (
	"context"
	"errors"
	"fmt"
)

// Code is one of the six normative error codes.
type Code string

const (
	CodeInvalidInput          Code = "InvalidInput"
	CodeNotFound              Code = "NotFound"
	CodeDependencyUnavailable Code = "DependencyUnavailable"
	CodeConflict              Code = "Conflict"
	CodeCanceled              Code = "Canceled"
	CodeInternal              Code = "Internal"
)

// Error is the typed error every tool handler ultimately returns. Details
// is an optional free-form payload (e.g. which field failed validation).
type Error struct {
	Code    Code
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func new(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// InvalidInput reports a malformed or out-of-range request field.
func InvalidInput(message string, details any) *Error {
	return &Error{Code: CodeInvalidInput, Message: message, Details: details}
}

// NotFound reports a missing entity by id or pattern.
func NotFound(message string) *Error {
	return new(CodeNotFound, message, nil)
}

// DependencyUnavailable wraps a failure from an external collaborator
// (embedding runtime, LLM runtime, persistence store) that the pipeline
// could not route around.
func DependencyUnavailable(message string, cause error) *Error {
	return new(CodeDependencyUnavailable, message, cause)
}

// Conflict reports a request that cannot proceed because of an existing
// unresolved state (e.g. a cycle in the supersession graph).
func Conflict(message string) *Error {
	return new(CodeConflict, message, nil)
}

// Canceled reports that the calling context was canceled or its deadline
// exceeded mid-pipeline.
func Canceled(cause error) *Error {
	return new(CodeCanceled, "operation canceled", cause)
}

// Internal wraps an unexpected failure that isn't one of the above.
func Internal(message string, cause error) *Error {
	return new(CodeInternal, message, cause)
}

// FromContext classifies a context error into Canceled, or returns nil if
// ctx carries no error.
func FromContext(ctx context.Context) *Error {
	if err := ctx.Err(); err != nil {
		return Canceled(err)
	}
	return nil
}

// As reports whether err (or something it wraps) is a *Error, returning it.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
