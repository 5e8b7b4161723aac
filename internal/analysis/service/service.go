// Package service runs the guided RCA workflow over analysis documents.
//
// Every mutation is a single atomic update of the analysis document. The
// reported event is a separate document. Finalize and efficacy verification
// move the event forward before the analysis update and fail when it cannot
// get there; other status syncs run after the commit and are logged on
// failure.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rcaflow/internal/access"
	"rcaflow/internal/analysis/metrics"
	"rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	eventservice "rcaflow/internal/events/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/sentinel"
	"rcaflow/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, a *models.Analysis) error
	FindByID(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error)
	FindByEvent(ctx context.Context, eventID id.EventID) (*models.Analysis, error)
	ListOpen(ctx context.Context, companyID id.CompanyID) ([]*models.Analysis, error)
	ListFinalized(ctx context.Context) ([]*models.Analysis, error)
	Execute(ctx context.Context, analysisID id.AnalysisID, fn func(*models.Analysis) error) (*models.Analysis, error)
}

// Events is the slice of the events service the workflow drives.
type Events interface {
	Report(ctx context.Context, cmd eventservice.ReportCommand) (*events.ReportedEvent, error)
	Get(ctx context.Context, eventID id.EventID) (*events.ReportedEvent, error)
	AttachAnalysis(ctx context.Context, eventID id.EventID, analysisID id.AnalysisID, start bool) (*events.ReportedEvent, error)
	TransitionStatus(ctx context.Context, eventID id.EventID, to events.Status, reason string) (*events.ReportedEvent, error)
	SyncDetails(ctx context.Context, eventID id.EventID, d events.Details) (*events.ReportedEvent, error)
}

// Notifier sends workflow emails. Implementations queue and return at once.
type Notifier interface {
	ValidationRequested(ctx context.Context, a *models.Analysis)
	ActionRejected(ctx context.Context, a *models.Analysis, action models.PlannedAction, v models.Validation)
	AnalysisFinalized(ctx context.Context, a *models.Analysis)
	EfficacyDue(ctx context.Context, a *models.Analysis)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DefaultEfficacyDelay is how long after finalization efficacy is due.
const DefaultEfficacyDelay = 90 * 24 * time.Hour

type Service struct {
	analyses      Store
	events        Events
	logger        *slog.Logger
	notifier      Notifier
	auditor       AuditPublisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	efficacyDelay time.Duration
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

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithEfficacyDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.efficacyDelay = d
		}
	}
}

func New(analyses Store, events Events, opts ...Option) *Service {
	s := &Service{
		analyses:      analyses,
		events:        events,
		logger:        slog.New(slog.DiscardHandler),
		tracer:        otel.Tracer("rcaflow/internal/analysis"),
		efficacyDelay: DefaultEfficacyDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, analysisID id.AnalysisID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "analysis."+name, trace.WithAttributes(
		attribute.String("analysis.id", analysisID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

type permission int

const (
	permView permission = iota
	permEdit
	permValidate
)

// load fetches the analysis and checks the caller's permission on it.
// Analyses the caller cannot see are reported as not found.
func (s *Service) load(ctx context.Context, analysisID id.AnalysisID, perm permission) (*models.Analysis, requestcontext.Principal, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, p, err
	}
	a, err := s.analyses.FindByID(ctx, analysisID)
	if err != nil {
		return nil, p, translate(err)
	}
	if !access.CanView(p, a.CompanyID, a.SiteID) {
		return nil, p, dErrors.New(dErrors.CodeNotFound, "analysis not found")
	}
	switch perm {
	case permEdit:
		_, err = access.RequireEdit(ctx, a.CompanyID, a.SiteID)
	case permValidate:
		_, err = access.RequireValidate(ctx, a.CompanyID)
	}
	if err != nil {
		return nil, p, err
	}
	return a, p, nil
}

// mutate authorizes the caller and applies fn in one atomic update.
func (s *Service) mutate(ctx context.Context, op string, analysisID id.AnalysisID, perm permission,
	fn func(p requestcontext.Principal, a *models.Analysis, now time.Time) error) (*models.Analysis, error) {
	if _, _, err := s.load(ctx, analysisID, perm); err != nil {
		return nil, err
	}
	p, _ := access.Principal(ctx)
	now := requestcontext.Now(ctx)
	start := time.Now()
	a, err := s.analyses.Execute(ctx, analysisID, func(a *models.Analysis) error {
		return fn(p, a, now)
	})
	if s.metrics != nil {
		s.metrics.ObserveUpdate(op, start)
	}
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// syncEvent moves the analysed event to status. The analysis write has
// already committed, so failures are only logged.
func (s *Service) syncEvent(ctx context.Context, a *models.Analysis, to events.Status, reason string) {
	if _, err := s.events.TransitionStatus(ctx, a.EventID, to, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to sync event status",
			"request_id", requestcontext.RequestID(ctx),
			"analysis_id", a.ID,
			"event_id", a.EventID,
			"to", to,
			"error", err,
		)
	}
}

// eventProgress is the forward path of an analysed event.
var eventProgress = []events.Status{
	events.StatusPending,
	events.StatusAnalysis,
	events.StatusValidation,
	events.StatusFinalized,
	events.StatusVerified,
}

// raiseEvent walks the analysed event forward until it is at least at to.
// An event already past to is left alone. moved reports whether any
// transition was applied.
func (s *Service) raiseEvent(ctx context.Context, eventID id.EventID, to events.Status, reason string) (moved bool, err error) {
	e, err := s.events.Get(ctx, eventID)
	if err != nil {
		return false, err
	}
	from := slices.Index(eventProgress, e.Status)
	if from < 0 {
		return false, dErrors.New(dErrors.CodePreconditionFailed, "event is "+string(e.Status))
	}
	target := slices.Index(eventProgress, to)
	for i := from + 1; i <= target; i++ {
		if _, err := s.events.TransitionStatus(ctx, eventID, eventProgress[i], reason); err != nil {
			return moved, err
		}
		moved = true
	}
	return moved, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, a *models.Analysis, details map[string]string) {
	s.logger.InfoContext(ctx, string(action),
		"log_type", "audit",
		"company_id", a.CompanyID,
		"analysis_id", a.ID,
		"step", a.CurrentStep,
	)
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Action:    string(action),
		CompanyID: a.CompanyID,
		Subject:   audit.Subject("analysis", a.ID),
		Details:   details,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

func stepName(step models.Step) string { return strconv.Itoa(int(step)) }

func translate(err error) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "analysis not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "analysis already exists")
	case errors.Is(err, sentinel.ErrRevisionMismatch):
		return dErrors.New(dErrors.CodeConflict, "analysis was modified concurrently; retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access analysis")
}
