// Package service builds analysis reports and the company dashboard on top
// of the analysis and event services, which enforce visibility.
package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"rcaflow/internal/access"
	analysis "rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	eventservice "rcaflow/internal/events/service"
	"rcaflow/internal/report/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/requestcontext"
)

type Analyses interface {
	Get(ctx context.Context, analysisID id.AnalysisID) (*analysis.Analysis, error)
	ListOpen(ctx context.Context, companyID id.CompanyID) ([]*analysis.Analysis, error)
}

type Events interface {
	Get(ctx context.Context, eventID id.EventID) (*events.ReportedEvent, error)
	Stats(ctx context.Context, companyID id.CompanyID) (*eventservice.Stats, error)
}

type Service struct {
	analyses Analyses
	events   Events
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(analyses Analyses, events Events, opts ...Option) *Service {
	s := &Service{analyses: analyses, events: events, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report builds the report of one analysis. A missing event degrades to the
// analysis' own snapshot of it.
func (s *Service) Report(ctx context.Context, analysisID id.AnalysisID) (*models.Report, error) {
	a, err := s.analyses.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	e, err := s.events.Get(ctx, a.EventID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "report event missing",
			"request_id", requestcontext.RequestID(ctx),
			"analysis_id", a.ID,
			"event_id", a.EventID,
		)
		e = nil
	}
	return models.Build(a, e, requestcontext.Now(ctx)), nil
}

type Dashboard struct {
	CompanyID      id.CompanyID        `json:"companyId"`
	GeneratedAt    time.Time           `json:"generatedAt"`
	Events         *eventservice.Stats `json:"events"`
	OpenAnalyses   []OpenAnalysis      `json:"openAnalyses"`
	OverdueActions []OverdueAction     `json:"overdueActions"`
}

type OpenAnalysis struct {
	ID          id.AnalysisID `json:"id"`
	EventID     id.EventID    `json:"eventId"`
	Title       string        `json:"title"`
	Site        string        `json:"site"`
	CurrentStep analysis.Step `json:"currentStep"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type OverdueAction struct {
	AnalysisID  id.AnalysisID `json:"analysisId"`
	Title       string        `json:"title"`
	ActionID    string        `json:"actionId"`
	Description string        `json:"description"`
	Responsible string        `json:"responsible"`
	DueDate     string        `json:"dueDate"`
	DaysOverdue int           `json:"daysOverdue"`
}

// Dashboard loads event counts and open analyses concurrently. companyID
// defaults to the caller's company.
func (s *Service) Dashboard(ctx context.Context, companyID id.CompanyID) (*Dashboard, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	now := requestcontext.Now(ctx)

	var (
		stats *eventservice.Stats
		open  []*analysis.Analysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.events.Stats(gctx, companyID)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = s.analyses.ListOpen(gctx, companyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		CompanyID:      companyID,
		GeneratedAt:    now,
		Events:         stats,
		OpenAnalyses:   make([]OpenAnalysis, 0, len(open)),
		OverdueActions: []OverdueAction{},
	}
	today := now.Format(events.DateLayout)
	for _, a := range open {
		d.OpenAnalyses = append(d.OpenAnalyses, OpenAnalysis{
			ID:          a.ID,
			EventID:     a.EventID,
			Title:       a.Event.Title,
			Site:        a.Event.Site,
			CurrentStep: a.CurrentStep,
			UpdatedAt:   a.UpdatedAt,
		})
		for _, pa := range a.OverdueActions(today) {
			d.OverdueActions = append(d.OverdueActions, OverdueAction{
				AnalysisID:  a.ID,
				Title:       a.Event.Title,
				ActionID:    pa.ID,
				Description: pa.Description,
				Responsible: pa.Responsible,
				DueDate:     pa.DueDate,
				DaysOverdue: daysBetween(pa.DueDate, today),
			})
		}
	}
	slices.SortStableFunc(d.OverdueActions, func(x, y OverdueAction) int {
		return y.DaysOverdue - x.DaysOverdue
	})
	return d, nil
}

func daysBetween(from, to string) int {
	f, err1 := time.Parse(events.DateLayout, from)
	t, err2 := time.Parse(events.DateLayout, to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(t.Sub(f).Hours() / 24)
}
