package httpapi_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "rcaflow/internal/http"
	"rcaflow/internal/platform/metrics"
	"rcaflow/internal/ratelimit"
	"rcaflow/internal/ratelimit/window"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/platform/middleware/request"
	"rcaflow/pkg/requestcontext"
	"rcaflow/pkg/testutil"
)

type loginRoutes struct{}

func (loginRoutes) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": "t"})
	})
}

type whoamiRoutes struct{}

func (whoamiRoutes) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"userId": requestcontext.UserID(r.Context()).String()})
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func fakeAuth(p requestcontext.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer good" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), p)))
		})
	}
}

func newRouter(t *testing.T, checks ...httpapi.Check) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	principal := testutil.Principal(id.NewCompanyID(), id.RoleUser, id.PermissionEditor)
	return httpapi.NewRouter(httpapi.Config{
		Logger:       slog.New(slog.DiscardHandler),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Checks:       checks,
		Limiter:      ratelimit.New(window.NewMemory()),
		LoginPolicy:  ratelimit.Policy{Name: "login", Limit: 2, Window: time.Minute, Key: ratelimit.ByClientIP},
		APIPolicy:    ratelimit.Policy{Name: "api", Limit: 100, Window: time.Minute, Key: ratelimit.ByUser},
		Authenticate: fakeAuth(principal),
		Public:       loginRoutes{},
		Modules:      []httpapi.Routes{whoamiRoutes{}},
	})
}

func authed(t *testing.T, method, path string) *http.Request {
	req := testutil.NewRequest(t, method, path)
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func TestProbesAndMetrics(t *testing.T) {
	r := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))

	testutil.DoRequest(r, authed(t, http.MethodGet, "/api/v1/whoami"))
	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "rcaflow_http_requests_total")
}

func TestReadiness(t *testing.T) {
	up := httpapi.Check{Name: "docstore", Probe: func(context.Context) error { return nil }}
	down := httpapi.Check{Name: "redis", Probe: func(context.Context) error { return errors.New("dial tcp: refused") }}

	rr := testutil.DoRequest(newRouter(t, up), testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(newRouter(t, up, down), testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := testutil.UnmarshalResponse[struct {
		Checks map[string]string `json:"checks"`
	}](t, rr)
	assert.Equal(t, map[string]string{"docstore": "up", "redis": "down"}, body.Checks)
}

func TestAPIRequiresToken(t *testing.T) {
	r := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/api/v1/whoami"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(r, authed(t, http.MethodGet, "/api/v1/whoami"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))
}

func TestLoginIsRateLimited(t *testing.T) {
	r := newRouter(t)
	for range 2 {
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{}))
		testutil.AssertStatus(t, rr, http.StatusOK)
	}
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{}))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
}

func TestFallbackResponses(t *testing.T) {
	r := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/api/v1/nope"))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodDelete, "/healthz"))
	testutil.AssertStatusAndError(t, rr, http.StatusMethodNotAllowed, "bad_request")

	rr = testutil.DoRequest(r, authed(t, http.MethodGet, "/api/v1/boom"))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}
