package notify_test

//go:generate mockgen -source=mailer.go -destination=mocks/mailer.go -package=mocks Mailer
//go:generate mockgen -source=notifier.go -destination=mocks/recipients.go -package=mocks Recipients

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	analysis "rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	"rcaflow/internal/notify"
	"rcaflow/internal/notify/mocks"
	"rcaflow/internal/platform/config"
	tenancy "rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/requestcontext"
)

type fixture struct {
	recipients *mocks.MockRecipients
	mailer     *mocks.MockMailer
	notifier   *notify.Notifier
	sent       []notify.Message
}

func newFixture(t *testing.T, opts ...notify.Option) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		recipients: mocks.NewMockRecipients(ctrl),
		mailer:     mocks.NewMockMailer(ctrl),
	}
	opts = append([]notify.Option{notify.WithBaseURL("https://rca.example.com")}, opts...)
	f.notifier = notify.New(f.recipients, f.mailer, opts...)
	return f
}

func (f *fixture) captureSends() {
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notify.Message) error {
			f.sent = append(f.sent, msg)
			return nil
		}).AnyTimes()
}

func newAnalysis(companyID id.CompanyID) *analysis.Analysis {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	a := analysis.NewAnalysis(id.NewAnalysisID(), companyID, id.NewEventID(), events.Details{
		SiteID: id.NewSiteID(),
		Site:   "Planta Norte",
		Title:  "Falla <bomba> 3",
	}, id.NewUserID(), now)
	a.Actions = []analysis.PlannedAction{{ID: "pa1", Description: "Cambiar sello", Responsible: "Ana Pérez"}}
	a.EfficacyDueDate = "2025-06-08"
	return a
}

func TestEventReportedGoesToEditorsAndValidators(t *testing.T) {
	f := newFixture(t)
	companyID := id.NewCompanyID()
	f.recipients.EXPECT().ListRecipients(gomock.Any(), companyID, id.PermissionEditor).Return([]tenancy.Recipient{
		{UserID: id.NewUserID(), Email: "editor@minera.cl", Name: "Eva"},
		{UserID: id.NewUserID(), Email: "Validator@Minera.cl ", Name: "Víctor"},
		{UserID: id.NewUserID(), Email: "editor@minera.cl", Name: "Eva"},
	}, nil)
	f.captureSends()

	e := &events.ReportedEvent{
		ID:        id.NewEventID(),
		CompanyID: companyID,
		Details: events.Details{
			Site:      "Planta Norte",
			Title:     "Fuga de aceite",
			Equipment: "Bomba 3",
			Date:      "2025-03-10",
			Priority:  events.PriorityHigh,
		},
		ReportedByName: "Rosa",
	}
	f.notifier.EventReported(context.Background(), e)
	f.notifier.Close()

	require.Len(t, f.sent, 2)
	assert.Equal(t, "editor@minera.cl", f.sent[0].To)
	assert.Equal(t, "validator@minera.cl", f.sent[1].To)
	assert.Equal(t, "Nuevo evento reportado: Fuga de aceite", f.sent[0].Subject)
	assert.Contains(t, f.sent[0].HTML, "Hola Eva")
	assert.Contains(t, f.sent[1].HTML, "Hola Víctor")
	assert.Contains(t, f.sent[0].HTML, "Bomba 3")
	assert.Contains(t, f.sent[0].HTML, "https://rca.example.com/eventos?id="+e.ID.String())
}

func TestAnalysisNotifications(t *testing.T) {
	companyID := id.NewCompanyID()
	validators := []tenancy.Recipient{{Email: "validator@minera.cl", Name: "Víctor"}}
	editors := []tenancy.Recipient{{Email: "editor@minera.cl", Name: "Eva"}}

	tests := []struct {
		name     string
		min      id.PermissionLevel
		users    []tenancy.Recipient
		notify   func(n *notify.Notifier, a *analysis.Analysis)
		to       string
		subject  string
		contains []string
	}{
		{
			name:  "validation requested",
			min:   id.PermissionValidator,
			users: validators,
			notify: func(n *notify.Notifier, a *analysis.Analysis) {
				n.ValidationRequested(context.Background(), a)
			},
			to:       "validator@minera.cl",
			subject:  "Acciones pendientes de validación: Falla <bomba> 3",
			contains: []string{"1 acciones", "step=5", "Falla &lt;bomba&gt; 3"},
		},
		{
			name:  "rejected action without address goes to editors",
			min:   id.PermissionEditor,
			users: editors,
			notify: func(n *notify.Notifier, a *analysis.Analysis) {
				n.ActionRejected(context.Background(), a, a.Actions[0], analysis.Validation{
					ActionID: "pa1", Decision: analysis.DecisionRejected, Comment: "Falta fecha", ValidatorName: "Víctor",
				})
			},
			to:       "editor@minera.cl",
			subject:  "Acción rechazada: Falla <bomba> 3",
			contains: []string{"Cambiar sello", "Falta fecha", "step=4"},
		},
		{
			name:  "finalized",
			min:   id.PermissionEditor,
			users: editors,
			notify: func(n *notify.Notifier, a *analysis.Analysis) {
				n.AnalysisFinalized(context.Background(), a)
			},
			to:       "editor@minera.cl",
			subject:  "Análisis finalizado: Falla <bomba> 3",
			contains: []string{"2025-06-08"},
		},
		{
			name:  "efficacy due",
			min:   id.PermissionValidator,
			users: validators,
			notify: func(n *notify.Notifier, a *analysis.Analysis) {
				n.EfficacyDue(context.Background(), a)
			},
			to:       "validator@minera.cl",
			subject:  "Verificación de eficacia pendiente: Falla <bomba> 3",
			contains: []string{"2025-06-08", "step=6"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.recipients.EXPECT().ListRecipients(gomock.Any(), companyID, tt.min).Return(tt.users, nil)
			f.captureSends()

			tt.notify(f.notifier, newAnalysis(companyID))
			f.notifier.Close()

			require.Len(t, f.sent, 1)
			assert.Equal(t, tt.to, f.sent[0].To)
			assert.Equal(t, tt.subject, f.sent[0].Subject)
			for _, s := range tt.contains {
				assert.Contains(t, f.sent[0].HTML, s)
			}
		})
	}
}

func TestRejectedActionGoesToResponsible(t *testing.T) {
	f := newFixture(t)
	f.captureSends()
	a := newAnalysis(id.NewCompanyID())
	action := a.Actions[0]
	action.ResponsibleEmail = "ana@minera.cl"

	f.notifier.ActionRejected(context.Background(), a, action, analysis.Validation{Comment: "Sin responsable"})
	f.notifier.Close()

	require.Len(t, f.sent, 1)
	assert.Equal(t, "ana@minera.cl", f.sent[0].To)
	assert.Contains(t, f.sent[0].HTML, "Hola Ana Pérez")
}

func TestDeliveryFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	companyID := id.NewCompanyID()
	f.recipients.EXPECT().ListRecipients(gomock.Any(), companyID, id.PermissionValidator).
		Return(nil, errors.New("store down"))
	f.recipients.EXPECT().ListRecipients(gomock.Any(), companyID, id.PermissionEditor).
		Return([]tenancy.Recipient{{Email: "a@minera.cl"}, {Email: "b@minera.cl"}}, nil)
	var attempts []string
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notify.Message) error {
			attempts = append(attempts, msg.To)
			if msg.To == "a@minera.cl" {
				return errors.New("rate limited")
			}
			return nil
		}).Times(2)

	a := newAnalysis(companyID)
	f.notifier.EfficacyDue(context.Background(), a)
	f.notifier.AnalysisFinalized(context.Background(), a)
	f.notifier.Close()

	assert.Equal(t, []string{"a@minera.cl", "b@minera.cl"}, attempts)
}

func TestRequestIDReachesMailer(t *testing.T) {
	f := newFixture(t)
	companyID := id.NewCompanyID()
	f.recipients.EXPECT().ListRecipients(gomock.Any(), companyID, id.PermissionEditor).
		Return([]tenancy.Recipient{{Email: "editor@minera.cl"}}, nil)
	var got string
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, msg notify.Message) error {
			got = requestcontext.RequestID(ctx)
			assert.True(t, strings.HasPrefix(msg.HTML, "<!DOCTYPE html>"))
			return nil
		})

	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	f.notifier.AnalysisFinalized(ctx, newAnalysis(companyID))
	f.notifier.Close()

	assert.Equal(t, "req-42", got)
}

func TestClosedNotifierDropsNotifications(t *testing.T) {
	f := newFixture(t)
	f.notifier.Close()
	f.notifier.AnalysisFinalized(context.Background(), newAnalysis(id.NewCompanyID()))
	f.notifier.Close()
}

func TestLogMailer(t *testing.T) {
	m := notify.NewLogMailer(slog.New(slog.DiscardHandler))
	require.NoError(t, m.Send(context.Background(), notify.Message{To: "a@minera.cl", Subject: "s"}))
}

func TestNewMailer(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	assert.IsType(t, &notify.LogMailer{}, notify.NewMailer(config.EmailConfig{Provider: "log"}, logger))
	assert.IsType(t, &notify.ResendMailer{}, notify.NewMailer(config.EmailConfig{Provider: "resend", ResendAPIKey: "re_test"}, logger))
}
