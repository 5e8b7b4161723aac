package ishikawa

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	dErrors "rcaflow/pkg/domain-errors"
)

var ignoreIDs = cmp.Options{
	cmpopts.IgnoreFields(Category{}, "ID"),
	cmpopts.IgnoreFields(Cause{}, "ID"),
}

func text(s string) *string { return &s }

func mustApply(t *testing.T, d *Diagram, m technique.Mutation) tree.Path {
	t.Helper()
	p, err := d.Apply(m)
	require.NoError(t, err)
	return p
}

func TestNewHasSixM(t *testing.T) {
	d := New()
	require.Len(t, d.Categories, 6)
	assert.Equal(t, "Mano de obra", d.Categories[0].Name)
	assert.Equal(t, "Medio ambiente", d.Categories[5].Name)
	assert.True(t, d.Empty())
}

func TestCauseEditing(t *testing.T) {
	d := New()
	p := mustApply(t, d, technique.Mutation{Op: technique.OpAdd, Target: TargetCause, Path: tree.Path{2}, Text: text("Sello gastado")})
	assert.Equal(t, tree.Path{2, 0}, p)
	p = mustApply(t, d, technique.Mutation{Op: technique.OpAdd, Target: TargetCause, Path: p, Text: text("Sin mantención preventiva")})
	assert.Equal(t, tree.Path{2, 0, 0}, p)
	mustApply(t, d, technique.Mutation{Op: technique.OpAdd, Target: TargetCause, Path: tree.Path{1}, Text: text("Procedimiento desactualizado")})
	mustApply(t, d, technique.Mutation{Op: technique.OpUpdate, Target: TargetCause, Path: tree.Path{1, 0}, Text: text("Procedimiento sin revisión")})

	want := New()
	want.Categories[1].Causes = []Cause{{Text: "Procedimiento sin revisión"}}
	want.Categories[2].Causes = []Cause{{Text: "Sello gastado", Causes: []Cause{{Text: "Sin mantención preventiva"}}}}
	if diff := cmp.Diff(want, d, ignoreIDs); diff != "" {
		t.Errorf("diagram mismatch (-want +got):\n%s", diff)
	}

	candidates := d.Candidates()
	require.Len(t, candidates, 2)
	assert.Equal(t, "Procedimiento sin revisión", candidates[0].Text)
	assert.Equal(t, "Método", candidates[0].Context)
	assert.Equal(t, "2.0.0", candidates[1].Path)

	found, ok := d.Find(candidates[1].NodeID)
	assert.True(t, ok)
	assert.Equal(t, "Sin mantención preventiva", found)

	mustApply(t, d, technique.Mutation{Op: technique.OpRemove, Target: TargetCause, Path: tree.Path{2, 0}})
	assert.Len(t, d.Candidates(), 1)
}

func TestCategoryEditing(t *testing.T) {
	d := New()
	p := mustApply(t, d, technique.Mutation{Op: technique.OpAdd, Target: TargetCategory, Text: text("Gestión")})
	assert.Equal(t, tree.Path{6}, p)
	mustApply(t, d, technique.Mutation{Op: technique.OpUpdate, Target: TargetCategory, Path: p, Text: text("Gestión de cambios")})
	mustApply(t, d, technique.Mutation{Op: technique.OpRemove, Target: TargetCategory, Path: tree.Path{0}})
	require.Len(t, d.Categories, 6)
	assert.Equal(t, "Método", d.Categories[0].Name)
	assert.Equal(t, "Gestión de cambios", d.Categories[5].Name)

	mustApply(t, d, technique.Mutation{Op: technique.OpUpdate, Target: TargetProblem, Text: text("Derrame de relaves")})
	assert.Equal(t, "Derrame de relaves", d.Problem)
	assert.Equal(t, technique.Line{Depth: 0, Text: "Problema: Derrame de relaves"}, d.Outline()[0])
}

func TestErrors(t *testing.T) {
	d := New()
	cases := []struct {
		name string
		m    technique.Mutation
		code dErrors.Code
	}{
		{"unknown target", technique.Mutation{Op: technique.OpAdd, Target: "branch"}, dErrors.CodeInvalidInput},
		{"category out of range", technique.Mutation{Op: technique.OpAdd, Target: TargetCause, Path: tree.Path{9}, Text: text("x")}, dErrors.CodeInvalidInput},
		{"cause out of range", technique.Mutation{Op: technique.OpUpdate, Target: TargetCause, Path: tree.Path{0, 3}, Text: text("x")}, dErrors.CodeInvalidInput},
		{"blank cause", technique.Mutation{Op: technique.OpAdd, Target: TargetCause, Path: tree.Path{0}, Text: text("  ")}, dErrors.CodeValidation},
		{"nested category", technique.Mutation{Op: technique.OpAdd, Target: TargetCategory, Path: tree.Path{0}, Text: text("x")}, dErrors.CodeInvalidInput},
		{"remove problem", technique.Mutation{Op: technique.OpRemove, Target: TargetProblem}, dErrors.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Apply(tc.m)
			assert.Equal(t, tc.code, dErrors.CodeOf(err))
		})
	}
}
