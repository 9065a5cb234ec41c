// Package apperrors defines the error kinds surfaced by the sketch tree engine.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeFieldValidation    Code = "FIELD_VALIDATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeGeneric            Code = "GENERIC_ERROR"
)

// Field error types.
const (
	FieldMissing = "missing"
	FieldInvalid = "invalid"
)

// ErrInvariant marks a structural invariant violation found while applying an event.
var ErrInvariant = errors.New("tree invariant violated")

// FieldError describes one malformed or dangling input field.
type FieldError struct {
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Error is the typed failure returned by the core.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, fmt.Sprintf("%s(%s): %s", f.Field, f.Type, f.Description))
		}
		msg = msg + ": " + strings.Join(parts, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FieldValidation returns a validation failure for a single field.
func FieldValidation(field, typ, description string) *Error {
	return &Error{
		Code:    CodeFieldValidation,
		Message: "One or more request fields are invalid",
		Fields:  []FieldError{{Field: field, Type: typ, Description: description}},
	}
}

// NotFound reports that a referenced node or sketch is absent.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// StorageUnavailable wraps a failure to reach the event log.
func StorageUnavailable(err error) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: "event log is unavailable", Err: err}
}

// Generic wraps an unexpected internal fault.
func Generic(message string, err error) *Error {
	return &Error{Code: CodeGeneric, Message: message, Err: err}
}

// Invariantf builds a generic error wrapping ErrInvariant.
func Invariantf(format string, args ...any) *Error {
	return Generic(fmt.Sprintf(format, args...), ErrInvariant)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeGeneric.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeGeneric
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to the status the HTTP adapter responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeFieldValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
