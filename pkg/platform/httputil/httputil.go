// Package httputil centralizes JSON encoding and domain error translation for handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "rcaflow/pkg/domain-errors"
)

// MaxBodyBytes bounds JSON request bodies. Step payloads carry whole technique
// trees, so this is generous.
const MaxBodyBytes = 2 << 20

// Validatable is implemented by request DTOs that normalize and check themselves.
type Validatable interface {
	Validate() error
}

type errorBody struct {
	Error       string               `json:"error"`
	Description string               `json:"error_description,omitempty"`
	Fields      []dErrors.FieldError `json:"fields,omitempty"`
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the JSON error envelope. Internal errors never
// leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = dErrors.MessageOf(err)
		body.Fields = dErrors.FieldsOf(err)
	}
	WriteJSON(w, StatusFor(code), body)
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}

// DecodeAndPrepare decodes the body into a T, runs its validation and writes the
// error response itself when either step fails. ok reports whether the handler
// should continue.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
