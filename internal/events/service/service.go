// Package service implements event intake and the event status machine.
//
// Reading and reporting follow the site restriction of the principal.
// Rejecting and reopening are decisions and need the validator level.
// TransitionStatus, AttachAnalysis and SyncDetails are driven by the
// analysis workflow, which authorizes the caller itself.
package service

import (
	"context"
	"errors"
	"log/slog"

	"rcaflow/internal/events/metrics"
	"rcaflow/internal/events/models"
	"rcaflow/internal/events/store"
	tenancy "rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, e *models.ReportedEvent) error
	FindByID(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID, f store.Filter) ([]*models.ReportedEvent, error)
	Execute(ctx context.Context, eventID id.EventID, fn func(*models.ReportedEvent) error) (*models.ReportedEvent, error)
}

// SiteResolver loads a site of a company; a site of another company is not found.
type SiteResolver interface {
	ResolveSite(ctx context.Context, companyID id.CompanyID, siteID id.SiteID) (*tenancy.Site, error)
}

// Notifier is told about new events. Delivery is asynchronous and never fails
// the operation.
type Notifier interface {
	EventReported(ctx context.Context, e *models.ReportedEvent)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	events   Store
	sites    SiteResolver
	logger   *slog.Logger
	notifier Notifier
	auditor  AuditPublisher
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
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

func New(events Store, sites SiteResolver, opts ...Option) *Service {
	s := &Service{
		events: events,
		sites:  sites,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, e *models.ReportedEvent, details map[string]string) {
	s.logger.InfoContext(ctx, string(action),
		"log_type", "audit",
		"company_id", e.CompanyID,
		"event_id", e.ID,
		"status", e.Status,
	)
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Action:    string(action),
		CompanyID: e.CompanyID,
		Subject:   audit.Subject("event", e.ID),
		Details:   details,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

func translate(err error) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "event already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access event")
}

// asConflict reports a forbidden status change as a conflict with the
// document's current state.
func asConflict(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
	}
	return err
}
