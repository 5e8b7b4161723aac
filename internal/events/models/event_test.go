package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

func TestTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusAnalysis, StatusRejected},
		StatusAnalysis:   {StatusValidation, StatusPending},
		StatusValidation: {StatusAnalysis, StatusFinalized},
		StatusFinalized:  {StatusVerified, StatusAnalysis},
		StatusRejected:   {StatusPending},
	}
	for _, from := range Statuses {
		for _, to := range Statuses {
			want := false
			for _, a := range allowed[from] {
				want = want || a == to
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusVerified.IsTerminal())
	assert.False(t, StatusRejected.IsTerminal())
}

func validDetails() Details {
	return Details{
		SiteID:    id.NewSiteID(),
		Title:     "Fuga en bomba P-101",
		Equipment: "Bomba P-101",
		Date:      "2025-02-14",
		Type:      "Falla de equipo",
		Priority:  PriorityHigh,
	}
}

func TestDetailsValidate(t *testing.T) {
	d := validDetails()
	require.NoError(t, d.Validate())

	d = Details{Date: "14/02/2025", Priority: "Urgente", Title: "  "}
	err := d.Validate()
	require.Error(t, err)
	var names []string
	for _, f := range dErrors.FieldsOf(err) {
		names = append(names, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "equipment", "type", "siteId", "date", "priority"}, names)
}

func TestApplyTransitionRecordsHistory(t *testing.T) {
	now := time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC)
	by := id.NewUserID()
	e, err := NewReportedEvent(id.NewEventID(), id.NewCompanyID(), validDetails(), by, "Ana", now)
	require.NoError(t, err)
	require.Len(t, e.StatusHistory, 1)

	require.NoError(t, e.CanTransition(StatusRejected))
	e.ApplyTransition(StatusRejected, by, "duplicado", now.Add(time.Hour))
	assert.Equal(t, "duplicado", e.RejectionReason)

	require.NoError(t, e.CanTransition(StatusPending))
	e.ApplyTransition(StatusPending, by, "", now.Add(2*time.Hour))
	assert.Empty(t, e.RejectionReason)
	assert.Len(t, e.StatusHistory, 3)
	assert.Equal(t, StatusRejected, e.StatusHistory[2].From)

	assert.True(t, dErrors.HasCode(e.CanTransition(StatusFinalized), dErrors.CodeInvariantViolation))
}
