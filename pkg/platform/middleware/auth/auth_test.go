package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (v stubValidator) ValidateToken(string) (*Claims, error) { return v.claims, v.err }

type stubRevocations struct {
	revoked bool
	err     error
}

func (s stubRevocations) IsTokenRevoked(context.Context, string) (bool, error) {
	return s.revoked, s.err
}

type stubResolver struct {
	principal requestcontext.Principal
	err       error
}

func (s stubResolver) ResolvePrincipal(context.Context, *Claims) (requestcontext.Principal, error) {
	return s.principal, s.err
}

type RequireAuthSuite struct {
	suite.Suite
	logger *slog.Logger
	claims *Claims
}

func TestRequireAuthSuite(t *testing.T) {
	suite.Run(t, new(RequireAuthSuite))
}

func (s *RequireAuthSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.claims = &Claims{UserID: id.NewUserID(), CompanyID: id.NewCompanyID(), JTI: "jti-1"}
}

func (s *RequireAuthSuite) serve(v TokenValidator, rc RevocationChecker, res PrincipalResolver, header string) (*httptest.ResponseRecorder, *requestcontext.Principal) {
	var got *requestcontext.Principal
	h := RequireAuth(v, rc, res, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := requestcontext.PrincipalFrom(r.Context())
		if ok {
			got = &p
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func (s *RequireAuthSuite) TestRejections() {
	s.Run("missing header", func() {
		rec, _ := s.serve(stubValidator{claims: s.claims}, nil, stubResolver{}, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "Missing or invalid Authorization header")
	})

	s.Run("invalid token", func() {
		rec, _ := s.serve(stubValidator{err: errors.New("bad signature")}, nil, stubResolver{}, "Bearer x")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.NotContains(rec.Body.String(), "bad signature")
	})

	s.Run("revoked token", func() {
		rec, _ := s.serve(stubValidator{claims: s.claims}, stubRevocations{revoked: true}, stubResolver{}, "Bearer x")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "revoked")
	})

	s.Run("revocation lookup failure", func() {
		rec, _ := s.serve(stubValidator{claims: s.claims}, stubRevocations{err: errors.New("redis down")}, stubResolver{}, "Bearer x")
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "redis down")
	})

	s.Run("deactivated user", func() {
		res := stubResolver{err: dErrors.New(dErrors.CodeUnauthorized, "user is inactive")}
		rec, _ := s.serve(stubValidator{claims: s.claims}, stubRevocations{}, res, "Bearer x")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *RequireAuthSuite) TestPrincipalInstalled() {
	res := stubResolver{principal: requestcontext.Principal{UserID: s.claims.UserID, Role: id.RoleAdmin}}
	rec, p := s.serve(stubValidator{claims: s.claims}, stubRevocations{}, res, "Bearer token")

	s.Require().Equal(http.StatusNoContent, rec.Code)
	s.Require().NotNil(p)
	s.Equal(s.claims.UserID, p.UserID)
	s.Equal("jti-1", p.TokenID)
	s.Equal(id.RoleAdmin, p.Role)
}
