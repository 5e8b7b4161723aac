package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "rcaflow/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("precondition failure carries field errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.WithFields(dErrors.CodePreconditionFailed, "step incomplete",
			[]dErrors.FieldError{{Field: "facts.what", Message: "required"}}))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
		if !strings.Contains(w.Body.String(), "facts.what") {
			t.Fatalf("expected field error in body, got %s", w.Body.String())
		}
	})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (r *nameRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("valid body is normalized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  Planta Norte "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[nameRequest](w, r, logger, context.Background(), "req-1")
		if !ok {
			t.Fatalf("expected ok, got %d", w.Code)
		}
		if req.Name != "Planta Norte" {
			t.Fatalf("expected trimmed name, got %q", req.Name)
		}
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[nameRequest](w, r, logger, context.Background(), "req-2"); ok {
			t.Fatalf("expected failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("validation failure is reported", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":" "}`))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[nameRequest](w, r, logger, context.Background(), "req-3"); ok {
			t.Fatalf("expected failure")
		}
		if !strings.Contains(w.Body.String(), "name is required") {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	})
}
