// Package service implements login, logout and principal resolution.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/access"
	"rcaflow/internal/auth/metrics"
	"rcaflow/internal/auth/token"
	tenancy "rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/email"
	"rcaflow/pkg/platform/audit"
	authmw "rcaflow/pkg/platform/middleware/auth"
	"rcaflow/pkg/requestcontext"
)

// UserDirectory is the slice of the tenancy service that authentication needs.
type UserDirectory interface {
	FindByEmail(ctx context.Context, address string) (*tenancy.UserProfile, error)
	ResolveUser(ctx context.Context, userID id.UserID) (*tenancy.UserProfile, error)
	ResolveCompany(ctx context.Context, companyID id.CompanyID) (*tenancy.Company, error)
}

type TokenIssuer interface {
	Issue(sub token.Subject, now time.Time) (string, *token.Claims, error)
}

type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *tenancy.UserProfile
}

var errBadCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

type Service struct {
	users       UserDirectory
	tokens      TokenIssuer
	revocations RevocationList
	logger      *slog.Logger
	auditor     AuditPublisher
	metrics     *metrics.Metrics

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(users UserDirectory, tokens TokenIssuer, revocations RevocationList, opts ...Option) *Service {
	s := &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the password and issues an access token. Unknown emails
// and wrong passwords get the same error and cost the same bcrypt work.
func (s *Service) Login(ctx context.Context, address, password string) (*LoginResult, error) {
	address = email.Normalize(address)
	user, err := s.users.FindByEmail(ctx, address)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.loginFailed(ctx, id.CompanyID{}, address, "unknown_email")
		return nil, errBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.loginFailed(ctx, user.CompanyID, address, "bad_password")
		return nil, errBadCredentials
	}
	if !user.Active {
		s.loginFailed(ctx, user.CompanyID, address, "user_inactive")
		return nil, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}
	active, err := s.companyActive(ctx, user)
	if err != nil {
		return nil, err
	}
	if !active {
		s.loginFailed(ctx, user.CompanyID, address, "company_inactive")
		return nil, dErrors.New(dErrors.CodeForbidden, "company is deactivated")
	}

	signed, claims, err := s.tokens.Issue(token.Subject{
		UserID:     user.ID,
		CompanyID:  user.CompanyID,
		Role:       user.Role,
		Permission: user.Permission,
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:    string(audit.EventLoginSucceeded),
		CompanyID: user.CompanyID,
		ActorID:   user.ID,
		Subject:   audit.Subject("user", user.ID),
		Details:   map[string]string{"device": requestcontext.Device(ctx)},
	})
	if s.metrics != nil {
		s.metrics.IncrementLogin("success")
	}
	return &LoginResult{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// Logout revokes the caller's token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context) error {
	p, err := access.Principal(ctx)
	if err != nil {
		return err
	}
	ttl := p.ExpiresAt.Sub(requestcontext.Now(ctx))
	if p.TokenID == "" || ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, p.TokenID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventLogout),
		Subject: audit.Subject("user", p.UserID),
	})
	if s.metrics != nil {
		s.metrics.IncrementLogout()
	}
	return nil
}

// Me returns the caller's freshly loaded profile.
func (s *Service) Me(ctx context.Context) (*tenancy.UserProfile, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.ResolveUser(ctx, p.UserID)
}

// ResolvePrincipal reloads the profile behind a validated token so that
// deactivations and access changes apply to tokens already issued.
func (s *Service) ResolvePrincipal(ctx context.Context, claims *authmw.Claims) (requestcontext.Principal, error) {
	user, err := s.users.ResolveUser(ctx, claims.UserID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "user no longer exists")
		}
		return requestcontext.Principal{}, err
	}
	if !user.Active {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "account is deactivated")
	}
	if user.CompanyID != claims.CompanyID {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token company mismatch")
	}
	active, err := s.companyActive(ctx, user)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	if !active {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "company is deactivated")
	}
	p := user.Principal()
	p.TokenID = claims.JTI
	p.ExpiresAt = claims.ExpiresAt
	return p, nil
}

// companyActive reports whether the user's company lets them in. Platform
// administrators are not bound to their home company.
func (s *Service) companyActive(ctx context.Context, user *tenancy.UserProfile) (bool, error) {
	if user.Role == id.RoleSuperAdmin {
		return true, nil
	}
	company, err := s.users.ResolveCompany(ctx, user.CompanyID)
	if err != nil {
		return false, err
	}
	return company.IsActive(), nil
}

// IsTokenRevoked fronts the revocation list for the auth middleware.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveRevocationCheck(time.Now())
	}
	return s.revocations.IsTokenRevoked(ctx, jti)
}

func (s *Service) loginFailed(ctx context.Context, companyID id.CompanyID, address, reason string) {
	s.logger.WarnContext(ctx, "login failed",
		"request_id", requestcontext.RequestID(ctx),
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.IncrementLogin(reason)
	}
	if companyID.IsNil() {
		return
	}
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventLoginFailed),
		CompanyID: companyID,
		Subject:   "email:" + address,
		Details:   map[string]string{"reason": reason},
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("rcaflow-timing-equalizer"), bcrypt.DefaultCost)
	})
	return s.dummyHash
}
