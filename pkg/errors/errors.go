// Package errors provides kind-based error values for the risk and
// approval workflow engine.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind classifies an engine error.
type Kind string

const (
	KindValidation        Kind = "Validation"
	KindBlockedAssessment Kind = "BlockedAssessment"
	KindInvalidTransition Kind = "InvalidTransition"
	KindExecutionFailure  Kind = "ExecutionFailure"
	KindNotFound          Kind = "NotFound"
	KindCheckTimeout      Kind = "CheckTimeout"
	KindUnknown           Kind = "Unknown"
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

func NewFieldError(field, reason string) FieldError {
	return FieldError{Field: field, Message: reason}
}

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind Kind `json:"kind"`
	// Message is the human readable string that indicates the error
	Message string `json:"message"`
	// Fields used when there's a validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	cause error
}

var _ error = (*Error)(nil)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err into an engine error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	for _, f := range e.Fields {
		str += fmt.Sprintf("; %s", f.Error())
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error { return e.cause }

// WithField returns a copy of the error with an additional field error.
func (e *Error) WithField(field, reason string) *Error {
	err := *e
	err.Fields = append(append([]FieldError{}, e.Fields...), NewFieldError(field, reason))
	return &err
}

// Validation builds a Validation error from field errors.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "invalid trade input", Fields: fields}
}

// IsKind reports whether err is an engine *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
