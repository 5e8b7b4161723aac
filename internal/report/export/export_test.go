package export_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysis "rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/technique"
	events "rcaflow/internal/events/models"
	"rcaflow/internal/report/export"
	"rcaflow/internal/report/models"
	id "rcaflow/pkg/domain"
)

func sampleReport() *models.Report {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return &models.Report{
		AnalysisID:  id.NewAnalysisID(),
		GeneratedAt: now,
		Summary: models.Summary{
			Details: events.Details{Title: "Fuga de pulpa", Site: "Planta Norte", Priority: events.PriorityHigh},
			Status:  events.StatusFinalized,
		},
		Facts:      analysis.Facts{Who: "Turno B", What: "Fuga"},
		Sessions:   []analysis.Session{{Date: "2025-03-02", Participants: []string{"Ana", "Luis"}}},
		Technique:  models.Technique{Kind: technique.KindIshikawa, Outline: []models.OutlineLine{{Depth: 0, Text: "Método"}, {Depth: 1, Text: "Sin plan"}}},
		RootCauses: []analysis.RootCause{{ID: "rc1", Text: "Sin plan"}},
		Actions: []models.Action{
			{
				PlannedAction: analysis.PlannedAction{ID: "pa1", Description: "Plan, con coma", Responsible: "Ana", DueDate: "2025-03-05"},
				RootCauses:    []string{"Sin plan"},
				Validation:    &analysis.Validation{Decision: analysis.DecisionApproved, Comment: `ok "bien"`, ValidatorName: "Víctor"},
				Evidences:     []string{"plan.pdf"},
				Overdue:       true,
			},
			{
				PlannedAction: analysis.PlannedAction{ID: "pa2", Description: "Capacitar", Responsible: "Luis", DueDate: "2025-04-30"},
				RootCauses:    []string{},
				Evidences:     []string{},
			},
		},
		Efficacy: models.Efficacy{DueDate: "2025-06-08", Checks: []analysis.EfficacyCheck{{Effective: true, VerifiedAt: now}}},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteText(&buf, sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "INFORME DE ANÁLISIS DE CAUSA RAÍZ\n"))
	assert.Contains(t, out, "Evento: Fuga de pulpa\n")
	assert.Contains(t, out, "Estado: Finalizado\n")
	assert.NotContains(t, out, "Equipo:")
	assert.Contains(t, out, "TÉCNICA: ISHIKAWA\n")
	assert.Contains(t, out, "Método\n  Sin plan\n")
	assert.Contains(t, out, "1. Plan, con coma\n  Responsable: Ana  Plazo: 2025-03-05  (vencida)\n")
	assert.Contains(t, out, "  Validación: approved - ok \"bien\"\n")
	assert.Contains(t, out, "  Validación: pending\n")
	assert.Contains(t, out, "- Sesión 2025-03-02: Ana, Luis\n")
	assert.Contains(t, out, "  2025-03-10: eficaz\n")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTextReportsWriteErrors(t *testing.T) {
	assert.Error(t, export.WriteText(failingWriter{}, sampleReport()))
}

func TestWriteActionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteActionsCSV(&buf, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{"pa1", "Plan, con coma", "Ana", "", "2025-03-05", "yes", "Sin plan", "approved", `ok "bien"`, "Víctor", "plan.pdf"}, rows[1])
	assert.Equal(t, []string{"pa2", "Capacitar", "Luis", "", "2025-04-30", "no", "", "pending", "", "", ""}, rows[2])
}
