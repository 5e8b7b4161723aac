package audit_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcaflow/internal/audit"
	id "rcaflow/pkg/domain"
	platformaudit "rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/audit/publisher"
	"rcaflow/pkg/platform/audit/store/memory"
	"rcaflow/pkg/testutil"
)

func TestAuditEndpoint(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := publisher.NewPublisher(store, publisher.WithLogger(slog.New(slog.DiscardHandler)))
	companyID := id.NewCompanyID()
	other := id.NewCompanyID()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	analysisID := id.NewAnalysisID()

	ctx := testutil.Context(testutil.Principal(companyID, id.RoleUser, id.PermissionEditor), now)
	for _, action := range []platformaudit.AuditEvent{platformaudit.EventAnalysisCreated, platformaudit.EventAnalysisAdvanced} {
		require.NoError(t, pub.Emit(ctx, platformaudit.Event{Action: string(action), Subject: platformaudit.Subject("analysis", analysisID)}))
	}
	require.NoError(t, pub.Emit(ctx, platformaudit.Event{Action: string(platformaudit.EventSiteCreated), Subject: "site:x"}))
	require.NoError(t, pub.Emit(context.Background(), platformaudit.Event{Action: string(platformaudit.EventCompanyCreated), CompanyID: other}))

	r := chi.NewRouter()
	audit.NewHandler(audit.NewService(pub), slog.New(slog.DiscardHandler)).Register(r)
	admin := testutil.Principal(companyID, id.RoleAdmin, id.PermissionValidator)

	t.Run("newest first with limit", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/audit?limit=2"), admin))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[struct {
			Events []platformaudit.Event `json:"events"`
			Count  int                   `json:"count"`
		}](t, rr)
		require.Equal(t, 2, body.Count)
		assert.Equal(t, string(platformaudit.EventSiteCreated), body.Events[0].Action)
		assert.Equal(t, "test-request", body.Events[0].RequestID)
	})

	t.Run("subject history in order", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/audit?subject=analysis:"+analysisID.String()), admin))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[struct {
			Events []platformaudit.Event `json:"events"`
		}](t, rr)
		require.Len(t, body.Events, 2)
		assert.Equal(t, string(platformaudit.EventAnalysisCreated), body.Events[0].Action)
	})

	t.Run("other company is forbidden", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/audit?companyId="+other.String()), admin))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		user := testutil.Principal(companyID, id.RoleUser, id.PermissionValidator)
		rr := testutil.DoRequest(r, testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/audit"), user))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("bad limit", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.WithPrincipal(testutil.NewRequest(t, http.MethodGet, "/audit?limit=zero"), admin))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/audit"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}
