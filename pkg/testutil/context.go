package testutil

import (
	"context"
	"net/http"
	"time"

	id "rcaflow/pkg/domain"
	"rcaflow/pkg/requestcontext"
)

// Principal builds a principal for company with the given role and level.
// Site restrictions are left empty, i.e. every site of the company.
func Principal(company id.CompanyID, role id.Role, level id.PermissionLevel) requestcontext.Principal {
	return requestcontext.Principal{
		UserID:     id.NewUserID(),
		CompanyID:  company,
		Email:      "tester@planta.cl",
		Name:       "Tester",
		Role:       role,
		Permission: level,
	}
}

// WithPrincipal simulates what the auth middleware does for an authenticated request.
func WithPrincipal(req *http.Request, p requestcontext.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// Context returns a context carrying p and a fixed request time, the state
// services see while serving an authenticated request.
func Context(p requestcontext.Principal, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), p)
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	return requestcontext.WithTime(ctx, now)
}
