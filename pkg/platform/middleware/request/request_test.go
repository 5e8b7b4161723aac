package request

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcaflow/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("generates an id when none is sent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	})

	t.Run("reuses inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaces oversized inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestTimeIsStableWithinRequest(t *testing.T) {
	var first, second time.Time
	h := Time(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(2 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, first, second)
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/events", nil))

	out := logs.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/v1/events"`)
	assert.Contains(t, out, `"bytes":15`)
}
