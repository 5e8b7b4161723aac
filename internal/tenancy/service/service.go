// Package service orchestrates companies, sites and user profiles.
//
// Authorization happens here, not in handlers: every exported operation
// reads the principal from the context and applies internal/access. The
// Resolve*/FindByEmail/ListRecipients helpers are internal choke points used
// by auth, events and notifications and perform no principal checks.
package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/tenancy/metrics"
	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/sentinel"
)

type CompanyStore interface {
	CreateIfNameAvailable(ctx context.Context, c *models.Company) error
	FindByID(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	FindByName(ctx context.Context, name string) (*models.Company, error)
	List(ctx context.Context) ([]*models.Company, error)
	Execute(ctx context.Context, companyID id.CompanyID, fn func(*models.Company) error) (*models.Company, error)
}

type SiteStore interface {
	CreateIfNameAvailable(ctx context.Context, s *models.Site) error
	FindByID(ctx context.Context, siteID id.SiteID) (*models.Site, error)
	FindByName(ctx context.Context, companyID id.CompanyID, name string) (*models.Site, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Site, error)
	Execute(ctx context.Context, siteID id.SiteID, fn func(*models.Site) error) (*models.Site, error)
}

type UserStore interface {
	CreateIfEmailAvailable(ctx context.Context, u *models.UserProfile) error
	FindByID(ctx context.Context, userID id.UserID) (*models.UserProfile, error)
	FindByEmail(ctx context.Context, address string) (*models.UserProfile, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error)
	ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error)
	Execute(ctx context.Context, userID id.UserID, fn func(*models.UserProfile) error) (*models.UserProfile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	companies  CompanyStore
	sites      SiteStore
	users      UserStore
	logger     *slog.Logger
	auditor    AuditPublisher
	metrics    *metrics.Metrics
	bcryptCost int
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

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(companies CompanyStore, sites SiteStore, users UserStore, opts ...Option) *Service {
	s := &Service{
		companies:  companies,
		sites:      sites,
		users:      users,
		logger:     slog.New(slog.DiscardHandler),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit records an audit event. Audit delivery is best effort: failures are
// logged and never fail the operation.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, companyID id.CompanyID, subject string, details map[string]string) {
	s.logger.InfoContext(ctx, string(action),
		"log_type", "audit",
		"company_id", companyID,
		"subject", subject,
	)
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Action:    string(action),
		CompanyID: companyID,
		Subject:   subject,
		Details:   details,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

// translate maps store errors onto domain errors. Domain errors pass through.
func translate(err error, kind string) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, kind+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, kind+" already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+kind)
}

// asValidation turns aggregate invariant violations into client validation errors.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}
