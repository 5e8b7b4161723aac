// Package domainerrors defines the coded errors services return to transport layers.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate them
// into one of the codes below and handlers map codes to HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodePreconditionFailed Code = "precondition_failed"
	CodeInvariantViolation Code = "invariant_violation"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"
)

// FieldError points at a single invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a coded domain error. Fields is populated for step-gating and
// request validation failures so clients can highlight the offending inputs.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WithFields builds a validation error carrying per-field details.
func WithFields(code Code, msg string, fields []FieldError) error {
	return &Error{Code: code, Message: msg, Fields: fields}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field errors attached to err, if any.
func FieldsOf(err error) []FieldError {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// MessageOf returns the client-facing message of the outermost domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
