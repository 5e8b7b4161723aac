package handler_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/docstore"
	"rcaflow/internal/tenancy"
	"rcaflow/internal/tenancy/handler"
	"rcaflow/internal/tenancy/service"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/requestcontext"
	"rcaflow/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := tenancy.NewService(docstore.NewMemory(), service.WithBcryptCost(bcrypt.MinCost))
	r := chi.NewRouter()
	tenancy.NewHandler(svc, slog.New(slog.DiscardHandler)).Register(r)
	return r
}

func as(req *http.Request, p requestcontext.Principal) *http.Request {
	req = testutil.WithPrincipal(req, p)
	return req.WithContext(requestcontext.WithTime(req.Context(), time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestCompanySiteUserFlow(t *testing.T) {
	router := newRouter(t)
	root := testutil.Principal(id.NewCompanyID(), id.RoleSuperAdmin, id.PermissionValidator)

	rr := testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/admin/companies", map[string]string{"name": "Acme"}), root))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	company := testutil.UnmarshalResponse[handler.CompanyResponse](t, rr)
	assert.Equal(t, "active", company.Status)
	companyID, err := id.ParseCompanyID(company.ID)
	require.NoError(t, err)

	admin := testutil.Principal(companyID, id.RoleAdmin, id.PermissionValidator)

	rr = testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/sites", map[string]string{"name": "Planta 1"}), admin))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]any{
		"email":           "jefe@acme.cl",
		"password":        "supersecret",
		"permissionLevel": "validator",
	}), admin))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	body := rr.Body.String()
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, body, "$2a$")

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/admin/companies/"+company.ID), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	details := testutil.UnmarshalResponse[handler.CompanyResponse](t, rr)
	require.NotNil(t, details.SiteCount)
	assert.Equal(t, 1, *details.SiteCount)
	assert.Equal(t, 1, *details.UserCount)
}

func TestErrors(t *testing.T) {
	router := newRouter(t)
	user := testutil.Principal(id.NewCompanyID(), id.RoleUser, id.PermissionEditor)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{
			name:   "malformed company id",
			req:    testutil.NewRequest(t, http.MethodGet, "/admin/companies/not-a-uuid"),
			status: http.StatusBadRequest,
			code:   "invalid_input",
		},
		{
			name:   "plain user cannot list companies",
			req:    testutil.NewRequest(t, http.MethodGet, "/admin/companies"),
			status: http.StatusForbidden,
			code:   "forbidden",
		},
		{
			name:   "missing body",
			req:    testutil.NewJSONRequest(t, http.MethodPost, "/sites", nil),
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "unknown role",
			req:    testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{"email": "a@b.cl", "password": "12345678", "role": "owner"}),
			status: http.StatusBadRequest,
			code:   "invalid_input",
		},
		{
			name:   "empty access change",
			req:    testutil.NewJSONRequest(t, http.MethodPatch, "/users/"+id.NewUserID().String()+"/access", map[string]any{}),
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(router, as(tt.req, user))
			testutil.AssertStatusAndError(t, rr, tt.status, tt.code)
		})
	}
}
