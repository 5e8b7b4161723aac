package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysis "rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	events "rcaflow/internal/events/models"
	"rcaflow/internal/report/models"
	id "rcaflow/pkg/domain"
)

func sample(t *testing.T, now time.Time) *analysis.Analysis {
	t.Helper()
	a := analysis.NewAnalysis(id.NewAnalysisID(), id.NewCompanyID(), id.NewEventID(), events.Details{
		Site: "Planta Norte", Title: "Fuga de pulpa", Equipment: "Bomba 3", Date: "2025-03-01",
	}, id.NewUserID(), now)
	a.Technique = analysis.NewTechniqueState(technique.KindIshikawa)
	text := "Sin plan de mantención"
	_, err := a.Technique.Editor().Apply(technique.Mutation{Op: technique.OpAdd, Target: "cause", Path: tree.Path{1}, Text: &text})
	require.NoError(t, err)
	a.RootCauses = []analysis.RootCause{{ID: "rc1", Text: text}}
	a.Actions = []analysis.PlannedAction{
		{ID: "pa1", Description: "Plan de mantención", Responsible: "Ana", DueDate: "2025-03-05", RootCauseIDs: []string{"rc1", "gone"}},
		{ID: "pa2", Description: "Capacitar turno", Responsible: "Luis", DueDate: "2025-04-30", RootCauseIDs: []string{"rc1"}},
	}
	a.Validations = []analysis.Validation{{ActionID: "pa1", Decision: analysis.DecisionApproved, ValidatorName: "Víctor"}}
	a.Evidences = []analysis.Evidence{{FileName: "plan.pdf", ActionID: "pa1"}, {FileName: "foto.png"}}
	return a
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a := sample(t, now)

	t.Run("with event", func(t *testing.T) {
		e := &events.ReportedEvent{
			ID:             a.EventID,
			Details:        events.Details{Site: "Planta Norte", Title: "Fuga de pulpa (editado)"},
			Status:         events.StatusAnalysis,
			ReportedByName: "Rosa",
		}
		r := models.Build(a, e, now)
		assert.Equal(t, "Fuga de pulpa (editado)", r.Summary.Title)
		assert.Equal(t, events.StatusAnalysis, r.Summary.Status)
		assert.Equal(t, "Rosa", r.Summary.ReportedBy)
		assert.Equal(t, now, r.GeneratedAt)
	})

	t.Run("without event uses the snapshot", func(t *testing.T) {
		r := models.Build(a, nil, now)
		assert.Equal(t, "Fuga de pulpa", r.Summary.Title)
		assert.Empty(t, r.Summary.Status)
	})

	r := models.Build(a, nil, now)
	assert.Equal(t, technique.KindIshikawa, r.Technique.Kind)
	assert.Equal(t, []models.OutlineLine{{Depth: 0, Text: "Método"}, {Depth: 1, Text: "Sin plan de mantención"}}, r.Technique.Outline)

	require.Len(t, r.Actions, 2)
	first, second := r.Actions[0], r.Actions[1]
	assert.Equal(t, []string{"Sin plan de mantención"}, first.RootCauses)
	assert.Equal(t, "approved", first.Status())
	assert.Equal(t, []string{"plan.pdf"}, first.Evidences)
	assert.True(t, first.Overdue)
	assert.Equal(t, "pending", second.Status())
	assert.Empty(t, second.Evidences)
	assert.False(t, second.Overdue)
}

func TestBuildWithoutTechnique(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a := analysis.NewAnalysis(id.NewAnalysisID(), id.NewCompanyID(), id.NewEventID(), events.Details{Title: "x"}, id.NewUserID(), now)
	r := models.Build(a, nil, now)
	assert.Empty(t, r.Technique.Kind)
	assert.NotNil(t, r.Technique.Outline)
	assert.Empty(t, r.Actions)
}
