package service_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rcaflow/internal/docstore"
	"rcaflow/internal/events/models"
	"rcaflow/internal/events/service"
	"rcaflow/internal/events/service/mocks"
	"rcaflow/internal/events/store"
	"rcaflow/internal/tenancy"
	tenancymodels "rcaflow/internal/tenancy/models"
	tenancyservice "rcaflow/internal/tenancy/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/audit/publisher"
	auditmemory "rcaflow/pkg/platform/audit/store/memory"
	"rcaflow/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	notifier   *mocks.MockNotifier
	auditStore *auditmemory.InMemoryStore
	svc        *service.Service
	now        time.Time

	company *tenancymodels.Company
	plant   *tenancymodels.Site
	port    *tenancymodels.Site
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.auditStore = auditmemory.NewInMemoryStore()
	s.now = time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)

	backend := docstore.NewMemory()
	tenants := tenancy.NewService(backend)
	s.svc = service.New(store.New(backend), tenants,
		service.WithNotifier(s.notifier),
		service.WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)

	root := testutil.Context(testutil.Principal(id.NewCompanyID(), id.RoleSuperAdmin, id.PermissionValidator), s.now)
	var err error
	s.company, err = tenants.CreateCompany(root, "Minera Andina")
	s.Require().NoError(err)
	s.plant, err = tenants.CreateSite(root, tenancyservice.CreateSiteCommand{CompanyID: s.company.ID, Name: "Planta Concentradora"})
	s.Require().NoError(err)
	s.port, err = tenants.CreateSite(root, tenancyservice.CreateSiteCommand{CompanyID: s.company.ID, Name: "Puerto Coloso"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) as(level id.PermissionLevel, sites ...id.SiteID) context.Context {
	p := testutil.Principal(s.company.ID, id.RoleUser, level)
	p.SiteIDs = sites
	return testutil.Context(p, s.now)
}

func (s *ServiceSuite) details(site *tenancymodels.Site, title, date string, priority models.Priority) models.Details {
	return models.Details{
		SiteID:      site.ID,
		Title:       title,
		Equipment:   "Bomba P-101",
		Date:        date,
		Type:        "Falla de equipo",
		Priority:    priority,
		Description: "Pérdida de presión en la línea de relaves",
	}
}

func (s *ServiceSuite) report(d models.Details) *models.ReportedEvent {
	s.notifier.EXPECT().EventReported(gomock.Any(), gomock.Any())
	e, err := s.svc.Report(s.as(id.PermissionEditor), service.ReportCommand{Details: d})
	s.Require().NoError(err)
	return e
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "got %v", err)
}

func (s *ServiceSuite) TestReport() {
	s.Run("editor reports a pending event and notifies", func() {
		var notified *models.ReportedEvent
		s.notifier.EXPECT().EventReported(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, e *models.ReportedEvent) { notified = e })

		e, err := s.svc.Report(s.as(id.PermissionEditor), service.ReportCommand{
			Details: s.details(s.plant, "Fuga en bomba", "2025-02-13", models.PriorityHigh),
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, e.Status)
		s.Equal(s.company.ID, e.CompanyID)
		s.Equal("Planta Concentradora", e.Site)
		s.Equal("Tester", e.ReportedByName)
		s.Require().Len(e.StatusHistory, 1)
		s.Equal(s.now, e.CreatedAt)
		s.Same(e, notified)

		events, err := s.auditStore.ListBySubject(context.Background(), s.company.ID, audit.Subject("event", e.ID))
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventEventReported), events[0].Action)
	})

	s.Run("viewers cannot report", func() {
		_, err := s.svc.Report(s.as(id.PermissionViewer), service.ReportCommand{
			Details: s.details(s.plant, "Fuga", "2025-02-13", models.PriorityLow),
		})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("editors restricted to another site cannot report", func() {
		_, err := s.svc.Report(s.as(id.PermissionEditor, s.port.ID), service.ReportCommand{
			Details: s.details(s.plant, "Fuga", "2025-02-13", models.PriorityLow),
		})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("unknown site is a field error", func() {
		d := s.details(s.plant, "Fuga", "2025-02-13", models.PriorityLow)
		d.SiteID = id.NewSiteID()
		_, err := s.svc.Report(s.as(id.PermissionEditor), service.ReportCommand{Details: d})
		s.requireCode(err, dErrors.CodeValidation)
		s.Require().Len(dErrors.FieldsOf(err), 1)
		s.Equal("siteId", dErrors.FieldsOf(err)[0].Field)
	})

	s.Run("missing fields are reported together", func() {
		_, err := s.svc.Report(s.as(id.PermissionEditor), service.ReportCommand{
			Details: models.Details{SiteID: s.plant.ID, Date: "2025-02-13", Priority: models.PriorityLow},
		})
		s.requireCode(err, dErrors.CodeValidation)
		s.Len(dErrors.FieldsOf(err), 3)
	})
}

func (s *ServiceSuite) TestGet() {
	e := s.report(s.details(s.plant, "Fuga en bomba", "2025-02-13", models.PriorityHigh))

	got, err := s.svc.Get(s.as(id.PermissionViewer), e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, got.ID)

	_, err = s.svc.Get(s.as(id.PermissionViewer, s.port.ID), e.ID)
	s.requireCode(err, dErrors.CodeNotFound)

	other := testutil.Context(testutil.Principal(id.NewCompanyID(), id.RoleAdmin, id.PermissionValidator), s.now)
	_, err = s.svc.Get(other, e.ID)
	s.requireCode(err, dErrors.CodeNotFound)

	_, err = s.svc.Get(s.as(id.PermissionViewer), id.NewEventID())
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestList() {
	pump := s.report(s.details(s.plant, "Fuga en bomba", "2025-02-10", models.PriorityHigh))
	belt := s.report(s.details(s.port, "Corte de correa transportadora", "2025-02-12", models.PriorityMedium))
	crane := s.report(s.details(s.port, "Grúa detenida por análisis eléctrico", "2025-01-30", models.PriorityLow))

	ids := func(events []*models.ReportedEvent) []id.EventID {
		out := make([]id.EventID, 0, len(events))
		for _, e := range events {
			out = append(out, e.ID)
		}
		return out
	}

	cases := []struct {
		name  string
		ctx   context.Context
		query service.ListQuery
		want  []id.EventID
	}{
		{"newest first", s.as(id.PermissionViewer), service.ListQuery{}, []id.EventID{belt.ID, pump.ID, crane.ID}},
		{"by site", s.as(id.PermissionViewer), service.ListQuery{SiteID: s.port.ID}, []id.EventID{belt.ID, crane.ID}},
		{"by priority", s.as(id.PermissionViewer), service.ListQuery{Priority: models.PriorityHigh}, []id.EventID{pump.ID}},
		{"date range", s.as(id.PermissionViewer), service.ListQuery{From: "2025-02-01", To: "2025-02-10"}, []id.EventID{pump.ID}},
		{"search folds case", s.as(id.PermissionViewer), service.ListQuery{Search: "CORREA"}, []id.EventID{belt.ID}},
		{"search folds accents", s.as(id.PermissionViewer), service.ListQuery{Search: "GRUA"}, []id.EventID{crane.ID}},
		{"search single accented word", s.as(id.PermissionViewer), service.ListQuery{Search: "analisis"}, []id.EventID{crane.ID}},
		{"site restricted principal", s.as(id.PermissionViewer, s.plant.ID), service.ListQuery{}, []id.EventID{pump.ID}},
		{"limit", s.as(id.PermissionViewer), service.ListQuery{Limit: 2}, []id.EventID{belt.ID, pump.ID}},
		{"by status", s.as(id.PermissionViewer), service.ListQuery{Status: models.StatusRejected}, nil},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := s.svc.List(tc.ctx, tc.query)
			s.Require().NoError(err)
			if tc.want == nil {
				s.Empty(got)
				return
			}
			s.Equal(tc.want, ids(got))
		})
	}

	s.Run("other companies are forbidden", func() {
		_, err := s.svc.List(s.as(id.PermissionViewer), service.ListQuery{CompanyID: id.NewCompanyID()})
		s.requireCode(err, dErrors.CodeForbidden)
	})
}

func (s *ServiceSuite) TestUpdateDetails() {
	e := s.report(s.details(s.plant, "Fuga en bomba", "2025-02-10", models.PriorityHigh))

	d := s.details(s.port, "Fuga en bomba de relaves", "2025-02-11", models.PriorityMedium)
	updated, err := s.svc.UpdateDetails(s.as(id.PermissionEditor), e.ID, d)
	s.Require().NoError(err)
	s.Equal("Puerto Coloso", updated.Site)
	s.Equal(models.PriorityMedium, updated.Priority)

	_, err = s.svc.UpdateDetails(s.as(id.PermissionViewer), e.ID, d)
	s.requireCode(err, dErrors.CodeForbidden)

	_, err = s.svc.Reject(s.as(id.PermissionValidator), e.ID, "duplicado")
	s.Require().NoError(err)
	_, err = s.svc.UpdateDetails(s.as(id.PermissionEditor), e.ID, d)
	s.requireCode(err, dErrors.CodeConflict)
}

func (s *ServiceSuite) TestRejectAndReopen() {
	e := s.report(s.details(s.plant, "Fuga en bomba", "2025-02-10", models.PriorityHigh))

	_, err := s.svc.Reject(s.as(id.PermissionEditor), e.ID, "duplicado")
	s.requireCode(err, dErrors.CodeForbidden)

	_, err = s.svc.Reject(s.as(id.PermissionValidator), e.ID, "  ")
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.svc.Reopen(s.as(id.PermissionValidator), e.ID, "")
	s.requireCode(err, dErrors.CodeConflict)

	rejected, err := s.svc.Reject(s.as(id.PermissionValidator), e.ID, "duplicado del evento 12")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Equal("duplicado del evento 12", rejected.RejectionReason)

	_, err = s.svc.Reject(s.as(id.PermissionValidator), e.ID, "otra vez")
	s.requireCode(err, dErrors.CodeConflict)

	reopened, err := s.svc.Reopen(s.as(id.PermissionValidator), e.ID, "")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, reopened.Status)
	s.Empty(reopened.RejectionReason)
	s.Len(reopened.StatusHistory, 3)
}

func (s *ServiceSuite) TestWorkflowHooks() {
	e := s.report(s.details(s.plant, "Fuga en bomba", "2025-02-10", models.PriorityHigh))
	ctx := s.as(id.PermissionEditor)
	analysisID := id.NewAnalysisID()

	_, err := s.svc.TransitionStatus(ctx, e.ID, models.StatusFinalized, "")
	s.requireCode(err, dErrors.CodeConflict)

	attached, err := s.svc.AttachAnalysis(ctx, e.ID, analysisID, true)
	s.Require().NoError(err)
	s.Equal(analysisID, attached.AnalysisID)
	s.Equal(models.StatusAnalysis, attached.Status)

	_, err = s.svc.AttachAnalysis(ctx, e.ID, id.NewAnalysisID(), true)
	s.requireCode(err, dErrors.CodeConflict)

	same, err := s.svc.TransitionStatus(ctx, e.ID, models.StatusAnalysis, "")
	s.Require().NoError(err)
	s.Len(same.StatusHistory, 2)

	moved, err := s.svc.TransitionStatus(ctx, e.ID, models.StatusValidation, "")
	s.Require().NoError(err)
	s.Equal(models.StatusValidation, moved.Status)

	d := s.details(s.plant, "Otro título", "2025-02-10", models.PriorityHigh)
	synced, err := s.svc.SyncDetails(ctx, e.ID, d)
	s.Require().NoError(err)
	s.Equal("Fuga en bomba", synced.Title)
}

func (s *ServiceSuite) TestStats() {
	a := s.report(s.details(s.plant, "Fuga", "2025-02-10", models.PriorityHigh))
	s.report(s.details(s.plant, "Corte", "2025-02-11", models.PriorityLow))
	s.report(s.details(s.port, "Grúa", "2025-02-12", models.PriorityLow))
	_, err := s.svc.Reject(s.as(id.PermissionValidator), a.ID, "duplicado")
	s.Require().NoError(err)

	stats, err := s.svc.Stats(s.as(id.PermissionViewer), id.CompanyID{})
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(2, stats.ByStatus[models.StatusPending])
	s.Equal(1, stats.ByStatus[models.StatusRejected])
	s.Equal(0, stats.ByStatus[models.StatusVerified])

	restricted, err := s.svc.Stats(s.as(id.PermissionViewer, s.port.ID), id.CompanyID{})
	s.Require().NoError(err)
	s.Equal(1, restricted.Total)
}
