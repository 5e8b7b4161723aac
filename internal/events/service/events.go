package service

import (
	"context"
	"slices"

	"rcaflow/internal/access"
	"rcaflow/internal/events/models"
	"rcaflow/internal/events/store"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/textnorm"
	"rcaflow/pkg/requestcontext"
)

type ReportCommand struct {
	// CompanyID defaults to the caller's company. Only superadmins may set it.
	CompanyID id.CompanyID
	models.Details
}

// Report records a new event in Pendiente and notifies the company's
// editors and validators.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) (*models.ReportedEvent, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	companyID := cmd.CompanyID
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if _, err := access.RequireEdit(ctx, companyID, cmd.SiteID); err != nil {
		return nil, err
	}
	details, err := s.resolveDetails(ctx, companyID, cmd.Details)
	if err != nil {
		return nil, err
	}

	e, err := models.NewReportedEvent(id.NewEventID(), companyID, details, p.UserID, p.Name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, translate(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementReported(e.Priority)
	}
	s.emit(ctx, audit.EventEventReported, e, map[string]string{"priority": string(e.Priority)})
	if s.notifier != nil {
		s.notifier.EventReported(ctx, e)
	}
	return e, nil
}

// resolveDetails validates d and fills the site name snapshot.
func (s *Service) resolveDetails(ctx context.Context, companyID id.CompanyID, d models.Details) (models.Details, error) {
	if err := d.Validate(); err != nil {
		return d, err
	}
	site, err := s.sites.ResolveSite(ctx, companyID, d.SiteID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return d, dErrors.WithFields(dErrors.CodeValidation, "event details are incomplete",
				[]dErrors.FieldError{{Field: "siteId", Message: "unknown site"}})
		}
		return d, err
	}
	if !site.Active {
		return d, dErrors.WithFields(dErrors.CodeValidation, "event details are incomplete",
			[]dErrors.FieldError{{Field: "siteId", Message: "site is inactive"}})
	}
	d.Site = site.Name
	return d, nil
}

// Get returns an event the caller may see. Events outside the caller's
// company or sites are reported as not found.
func (s *Service) Get(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	if !access.CanView(p, e.CompanyID, e.SiteID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	return e, nil
}

// ListQuery filters List. Zero values are ignored. From and To are
// inclusive YYYY-MM-DD dates.
type ListQuery struct {
	CompanyID id.CompanyID
	Status    models.Status
	SiteID    id.SiteID
	Type      string
	Priority  models.Priority
	From      string
	To        string
	Search    string
	Limit     int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

func (s *Service) List(ctx context.Context, q ListQuery) ([]*models.ReportedEvent, error) {
	visible, err := s.visible(ctx, q.CompanyID, store.Filter{
		Status:   q.Status,
		SiteID:   q.SiteID,
		Type:     q.Type,
		Priority: q.Priority,
	})
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	out := make([]*models.ReportedEvent, 0, min(len(visible), limit))
	for _, e := range visible {
		if len(out) == limit {
			break
		}
		if q.From != "" && e.Date < q.From {
			continue
		}
		if q.To != "" && e.Date > q.To {
			continue
		}
		if q.Search != "" && !matches(e, q.Search) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// matches reports whether the search term appears in any text field,
// ignoring case and accents.
func matches(e *models.ReportedEvent, term string) bool {
	return slices.ContainsFunc([]string{e.Title, e.Description, e.Equipment, e.Site, e.Type},
		func(field string) bool { return textnorm.ContainsFold(field, term) })
}

// visible loads the events of the requested company filtered down to the
// sites the caller covers.
func (s *Service) visible(ctx context.Context, companyID id.CompanyID, f store.Filter) ([]*models.ReportedEvent, error) {
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
	all, err := s.events.ListByCompany(ctx, companyID, f)
	if err != nil {
		return nil, translate(err)
	}
	return slices.DeleteFunc(all, func(e *models.ReportedEvent) bool {
		return !access.CanView(p, e.CompanyID, e.SiteID)
	}), nil
}

// Stats counts the caller's visible events by status.
type Stats struct {
	Total    int                   `json:"total"`
	ByStatus map[models.Status]int `json:"byStatus"`
}

func (s *Service) Stats(ctx context.Context, companyID id.CompanyID) (*Stats, error) {
	events, err := s.visible(ctx, companyID, store.Filter{})
	if err != nil {
		return nil, err
	}
	stats := &Stats{Total: len(events), ByStatus: make(map[models.Status]int, len(models.Statuses))}
	for _, st := range models.Statuses {
		stats.ByStatus[st] = 0
	}
	for _, e := range events {
		stats.ByStatus[e.Status]++
	}
	return stats, nil
}

// UpdateDetails edits the intake fields while the event is Pendiente or En
// análisis. Moving the event to another site needs edit rights on both.
func (s *Service) UpdateDetails(ctx context.Context, eventID id.EventID, d models.Details) (*models.ReportedEvent, error) {
	current, err := s.editable(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if d.SiteID != current.SiteID {
		if _, err := access.RequireEdit(ctx, current.CompanyID, d.SiteID); err != nil {
			return nil, err
		}
	}
	details, err := s.resolveDetails(ctx, current.CompanyID, d)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	e, err := s.events.Execute(ctx, eventID, func(e *models.ReportedEvent) error {
		if err := e.CanEditDetails(); err != nil {
			return asConflict(err)
		}
		e.ApplyDetails(details, now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.emit(ctx, audit.EventEventUpdated, e, nil)
	return e, nil
}

func (s *Service) editable(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := access.RequireEdit(ctx, e.CompanyID, e.SiteID); err != nil {
		return nil, err
	}
	return e, nil
}

// Reject closes a Pendiente event without analysis.
func (s *Service) Reject(ctx context.Context, eventID id.EventID, reason string) (*models.ReportedEvent, error) {
	reason, err := models.ValidateReason(reason)
	if err != nil {
		return nil, err
	}
	e, err := s.decide(ctx, eventID, models.StatusRejected, reason)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEventRejected, e, map[string]string{"reason": reason})
	return e, nil
}

// Reopen puts a rejected event back to Pendiente.
func (s *Service) Reopen(ctx context.Context, eventID id.EventID, reason string) (*models.ReportedEvent, error) {
	e, err := s.decide(ctx, eventID, models.StatusPending, reason)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEventReopened, e, nil)
	return e, nil
}

func (s *Service) decide(ctx context.Context, eventID id.EventID, to models.Status, reason string) (*models.ReportedEvent, error) {
	current, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	p, err := access.RequireValidate(ctx, current.CompanyID)
	if err != nil {
		return nil, err
	}
	// Reopen is only valid from Rechazado; En análisis -> Pendiente belongs
	// to the analysis workflow.
	if to == models.StatusPending && current.Status != models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeConflict, "only rejected events can be reopened")
	}
	if to == models.StatusRejected && !current.AnalysisID.IsNil() {
		return nil, dErrors.New(dErrors.CodeConflict, "event has an analysis in progress")
	}
	return s.transition(ctx, eventID, to, p.UserID, reason)
}

func (s *Service) transition(ctx context.Context, eventID id.EventID, to models.Status, by id.UserID, reason string) (*models.ReportedEvent, error) {
	now := requestcontext.Now(ctx)
	e, err := s.events.Execute(ctx, eventID, func(e *models.ReportedEvent) error {
		if err := e.CanTransition(to); err != nil {
			return asConflict(err)
		}
		e.ApplyTransition(to, by, reason, now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(to)
	}
	return e, nil
}

// TransitionStatus moves the event along the status machine on behalf of
// the analysis workflow. Moving to the current status is a no-op.
func (s *Service) TransitionStatus(ctx context.Context, eventID id.EventID, to models.Status, reason string) (*models.ReportedEvent, error) {
	current, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	if current.Status == to {
		return current, nil
	}
	e, err := s.transition(ctx, eventID, to, requestcontext.UserID(ctx), reason)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEventStatusChanged, e, map[string]string{"from": string(current.Status), "to": string(to)})
	return e, nil
}

// AttachAnalysis links a new analysis to the event. When start is set a
// Pendiente event moves to En análisis.
func (s *Service) AttachAnalysis(ctx context.Context, eventID id.EventID, analysisID id.AnalysisID, start bool) (*models.ReportedEvent, error) {
	by := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	var moved bool
	e, err := s.events.Execute(ctx, eventID, func(e *models.ReportedEvent) error {
		moved = false
		if !e.AnalysisID.IsNil() && e.AnalysisID != analysisID {
			return dErrors.New(dErrors.CodeConflict, "event already has an analysis")
		}
		if e.Status == models.StatusRejected {
			return dErrors.New(dErrors.CodeConflict, "event was rejected")
		}
		e.AnalysisID = analysisID
		e.UpdatedAt = now
		if start && e.Status == models.StatusPending {
			e.ApplyTransition(models.StatusAnalysis, by, "", now)
			moved = true
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if moved {
		if s.metrics != nil {
			s.metrics.IncrementTransition(models.StatusAnalysis)
		}
		s.emit(ctx, audit.EventEventStatusChanged, e, map[string]string{"from": string(models.StatusPending), "to": string(models.StatusAnalysis)})
	}
	return e, nil
}

// SyncDetails mirrors step 1 edits of the analysis onto the event. It is a
// no-op once the event no longer accepts detail edits.
func (s *Service) SyncDetails(ctx context.Context, eventID id.EventID, d models.Details) (*models.ReportedEvent, error) {
	current, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, translate(err)
	}
	if !current.Status.AllowsDetailEdits() {
		return current, nil
	}
	details, err := s.resolveDetails(ctx, current.CompanyID, d)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	e, err := s.events.Execute(ctx, eventID, func(e *models.ReportedEvent) error {
		if e.Status.AllowsDetailEdits() {
			e.ApplyDetails(details, now)
		}
		return nil
	})
	return e, translate(err)
}

// Resolve loads an event without principal checks.
func (s *Service) Resolve(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error) {
	e, err := s.events.FindByID(ctx, eventID)
	return e, translate(err)
}
