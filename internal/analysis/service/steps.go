package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"rcaflow/internal/access"
	"rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	eventservice "rcaflow/internal/events/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/textnorm"
	"rcaflow/pkg/requestcontext"
)

const (
	maxListItems  = 50
	maxFieldRunes = 2000
)

// EventStepInput is the step 1 form. EventID is only read when creating
// an analysis for an already reported event.
type EventStepInput struct {
	// CompanyID defaults to the caller's company. Only superadmins may set it.
	CompanyID        id.CompanyID
	EventID          id.EventID
	Details          events.Details
	ImmediateActions []models.ImmediateAction
}

type FactsStepInput struct {
	Facts    models.Facts
	Sessions []models.Session
}

type ResultsStepInput struct {
	Conclusions string
}

// StepInput carries the form of the step being saved. Steps 3 to 5 are
// edited through their item endpoints instead.
type StepInput struct {
	Event   *EventStepInput
	Facts   *FactsStepInput
	Results *ResultsStepInput
}

// CreateFromEventStep saves step 1 of a new analysis. Without an EventID
// the event is reported first and stays Pendiente; for an existing event
// the event moves to En análisis.
func (s *Service) CreateFromEventStep(ctx context.Context, in EventStepInput) (out *models.Analysis, err error) {
	analysisID := id.NewAnalysisID()
	ctx, span := s.startSpan(ctx, "CreateFromEventStep", analysisID)
	defer func() { endSpan(span, err) }()

	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	immediate, err := cleanImmediateActions(in.ImmediateActions)
	if err != nil {
		return nil, err
	}

	var event *events.ReportedEvent
	existing := !in.EventID.IsNil()
	if existing {
		if event, err = s.events.Get(ctx, in.EventID); err != nil {
			return nil, err
		}
		if _, err := access.RequireEdit(ctx, event.CompanyID, event.SiteID); err != nil {
			return nil, err
		}
		if !event.AnalysisID.IsNil() {
			return nil, dErrors.New(dErrors.CodeConflict, "event already has an analysis")
		}
		if event.Status != events.StatusPending {
			return nil, dErrors.New(dErrors.CodeConflict, "only pending events can be analysed")
		}
		if in.Details.SiteID.IsNil() {
			in.Details = event.Details
		} else if synced, err := s.events.SyncDetails(ctx, event.ID, in.Details); err == nil {
			event = synced
		} else {
			return nil, err
		}
	} else {
		event, err = s.events.Report(ctx, eventservice.ReportCommand{CompanyID: in.CompanyID, Details: in.Details})
		if err != nil {
			return nil, err
		}
	}

	a := models.NewAnalysis(analysisID, event.CompanyID, event.ID, event.Details, p.UserID, requestcontext.Now(ctx))
	a.ImmediateActions = immediate
	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, translate(err)
	}
	if _, err := s.events.AttachAnalysis(ctx, event.ID, a.ID, existing); err != nil {
		s.logger.ErrorContext(ctx, "failed to link analysis to event",
			"request_id", requestcontext.RequestID(ctx),
			"analysis_id", a.ID,
			"event_id", event.ID,
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.emit(ctx, audit.EventAnalysisCreated, a, map[string]string{"event_id": event.ID.String()})
	return a, nil
}

// SaveStep stores the form of step. Drafts are accepted; completeness is
// only enforced by Advance and Finalize.
func (s *Service) SaveStep(ctx context.Context, analysisID id.AnalysisID, step models.Step, in StepInput) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "SaveStep", analysisID)
	defer func() { endSpan(span, err) }()

	var apply func(p requestcontext.Principal, a *models.Analysis, now time.Time) error
	switch {
	case step == models.StepEvent && in.Event != nil:
		apply, err = s.prepareEventStep(ctx, analysisID, *in.Event)
	case step == models.StepFacts && in.Facts != nil:
		apply, err = prepareFactsStep(*in.Facts)
	case step == models.StepResults && in.Results != nil:
		apply, err = prepareResultsStep(*in.Results)
	case step >= models.StepTechnique && step <= models.StepValidation:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "this step is edited through its item endpoints")
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "form does not match the step")
	}
	if err != nil {
		return nil, err
	}

	a, err := s.mutate(ctx, "save_step", analysisID, permEdit, func(p requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(step); err != nil {
			return err
		}
		return apply(p, a, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventAnalysisStepSaved, a, map[string]string{"step": stepName(step)})
	return a, nil
}

// prepareEventStep validates step 1 outside the document update and mirrors
// complete details onto the event.
func (s *Service) prepareEventStep(ctx context.Context, analysisID id.AnalysisID, in EventStepInput) (func(requestcontext.Principal, *models.Analysis, time.Time) error, error) {
	current, _, err := s.load(ctx, analysisID, permEdit)
	if err != nil {
		return nil, err
	}
	if err := current.CanEditStep(models.StepEvent); err != nil {
		return nil, err
	}
	immediate, err := cleanImmediateActions(in.ImmediateActions)
	if err != nil {
		return nil, err
	}
	details := in.Details
	if details.SiteID.IsNil() {
		details.SiteID = current.SiteID
	}
	if details.SiteID != current.SiteID {
		if _, err := access.RequireEdit(ctx, current.CompanyID, details.SiteID); err != nil {
			return nil, err
		}
	}

	complete := details.Validate() == nil
	switch {
	case complete:
		synced, err := s.events.SyncDetails(ctx, current.EventID, details)
		if err != nil {
			return nil, err
		}
		if synced.Status.AllowsDetailEdits() {
			details = synced.Details
		} else {
			details.Site = current.Event.Site
		}
	case details.SiteID == current.SiteID:
		details.Site = current.Event.Site
	default:
		details.Site = ""
	}

	return func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		a.ApplyEventStep(details, immediate, now)
		return nil
	}, nil
}

func prepareFactsStep(in FactsStepInput) (func(requestcontext.Principal, *models.Analysis, time.Time) error, error) {
	facts := models.Facts{
		Who:     strings.TrimSpace(in.Facts.Who),
		What:    strings.TrimSpace(in.Facts.What),
		Where:   strings.TrimSpace(in.Facts.Where),
		When:    strings.TrimSpace(in.Facts.When),
		How:     strings.TrimSpace(in.Facts.How),
		HowMuch: strings.TrimSpace(in.Facts.HowMuch),
	}
	for _, v := range []string{facts.Who, facts.What, facts.Where, facts.When, facts.How, facts.HowMuch} {
		if utf8.RuneCountInString(v) > maxFieldRunes {
			return nil, dErrors.New(dErrors.CodeValidation, "facts must be at most 2000 characters each")
		}
	}
	if len(in.Sessions) > maxListItems {
		return nil, dErrors.New(dErrors.CodeValidation, "too many sessions")
	}
	sessions := make([]models.Session, 0, len(in.Sessions))
	for _, sess := range in.Sessions {
		sess.ID = orNewID(sess.ID)
		sess.Date = strings.TrimSpace(sess.Date)
		sess.Participants = textnorm.DedupeAndTrim(sess.Participants)
		sess.Notes = strings.TrimSpace(sess.Notes)
		if utf8.RuneCountInString(sess.Notes) > maxFieldRunes {
			return nil, dErrors.New(dErrors.CodeValidation, "session notes must be at most 2000 characters")
		}
		sessions = append(sessions, sess)
	}
	return func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		a.ApplyFactsStep(facts, sessions, now)
		return nil
	}, nil
}

func prepareResultsStep(in ResultsStepInput) (func(requestcontext.Principal, *models.Analysis, time.Time) error, error) {
	conclusions := strings.TrimSpace(in.Conclusions)
	if utf8.RuneCountInString(conclusions) > 4*maxFieldRunes {
		return nil, dErrors.New(dErrors.CodeValidation, "conclusions are too long")
	}
	return func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		a.ApplyResultsStep(conclusions, now)
		return nil
	}, nil
}

func cleanImmediateActions(in []models.ImmediateAction) ([]models.ImmediateAction, error) {
	if len(in) > maxListItems {
		return nil, dErrors.New(dErrors.CodeValidation, "too many immediate actions")
	}
	out := make([]models.ImmediateAction, 0, len(in))
	for _, ia := range in {
		ia.ID = orNewID(ia.ID)
		ia.Description = strings.TrimSpace(ia.Description)
		ia.Responsible = strings.TrimSpace(ia.Responsible)
		ia.Date = strings.TrimSpace(ia.Date)
		if ia.Date != "" {
			if _, err := events.ParseDate(ia.Date); err != nil {
				return nil, err
			}
		}
		if utf8.RuneCountInString(ia.Description) > maxFieldRunes {
			return nil, dErrors.New(dErrors.CodeValidation, "immediate action description is too long")
		}
		out = append(out, ia)
	}
	return out, nil
}

func orNewID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return uuid.NewString()
}

// Advance moves to the next step once every step up to the current one
// validates. Leaving step 1 starts the event analysis and leaving the action
// plan submits it for validation, unless the event is already further on.
func (s *Service) Advance(ctx context.Context, analysisID id.AnalysisID) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "Advance", analysisID)
	defer func() { endSpan(span, err) }()

	a, err := s.mutate(ctx, "advance", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanAdvance(); err != nil {
			return err
		}
		a.ApplyAdvance(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Revisited steps never move the event back.
	var target events.Status
	switch a.CurrentStep {
	case models.StepFacts:
		target = events.StatusAnalysis
	case models.StepValidation:
		target = events.StatusValidation
	}
	if target != "" {
		moved, err := s.raiseEvent(ctx, a.EventID, target, "")
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to sync event status",
				"request_id", requestcontext.RequestID(ctx),
				"analysis_id", a.ID,
				"event_id", a.EventID,
				"to", target,
				"error", err,
			)
		}
		if moved && target == events.StatusValidation && s.notifier != nil {
			s.notifier.ValidationRequested(ctx, a)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementAdvance(int(a.CurrentStep))
	}
	span.SetAttributes(attribute.Int("analysis.step", int(a.CurrentStep)))
	s.emit(ctx, audit.EventAnalysisAdvanced, a, map[string]string{"step": stepName(a.CurrentStep)})
	return a, nil
}

func (s *Service) Get(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error) {
	a, _, err := s.load(ctx, analysisID, permView)
	return a, err
}

// OpenResult is an analysis together with the step the client should show.
type OpenResult struct {
	Analysis *models.Analysis
	Step     models.Step
}

// Open serves deep links: the requested step is clamped to the furthest
// step reached. Step zero opens the current step.
func (s *Service) Open(ctx context.Context, analysisID id.AnalysisID, step models.Step) (*OpenResult, error) {
	a, err := s.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return &OpenResult{Analysis: a, Step: a.ClampStep(step)}, nil
}

// ValidateStep reports what keeps step from validating.
func (s *Service) ValidateStep(ctx context.Context, analysisID id.AnalysisID, step models.Step) ([]dErrors.FieldError, error) {
	a, err := s.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	fields := a.ValidateStep(step)
	if fields == nil {
		fields = []dErrors.FieldError{}
	}
	return fields, nil
}

// ListOpen returns the unfinalized analyses of company the caller can see.
func (s *Service) ListOpen(ctx context.Context, companyID id.CompanyID) ([]*models.Analysis, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if !access.InCompany(p, companyID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to view this company")
	}
	all, err := s.analyses.ListOpen(ctx, companyID)
	if err != nil {
		return nil, translate(err)
	}
	out := all[:0]
	for _, a := range all {
		if access.CanView(p, a.CompanyID, a.SiteID) {
			out = append(out, a)
		}
	}
	return out, nil
}
