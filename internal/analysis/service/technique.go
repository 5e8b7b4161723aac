package service

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/requestcontext"
)

// SelectTechnique sets the technique of step 3. Switching away from a tree
// with content needs force and discards that tree.
func (s *Service) SelectTechnique(ctx context.Context, analysisID id.AnalysisID, kind technique.Kind, force bool) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "SelectTechnique", analysisID)
	defer func() { endSpan(span, err) }()

	var previous technique.Kind
	a, err := s.mutate(ctx, "select_technique", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepTechnique); err != nil {
			return err
		}
		previous = a.Technique.Kind
		return a.SelectTechnique(kind, force, now)
	})
	if err != nil {
		return nil, err
	}
	if previous != kind {
		s.emit(ctx, audit.EventTechniqueChanged, a, map[string]string{"from": string(previous), "to": string(kind)})
	}
	return a, nil
}

// TreeResult is the document after a tree mutation and the path of the
// node it touched.
type TreeResult struct {
	Analysis *models.Analysis
	Path     tree.Path
}

// ApplyTree applies m to the active technique tree. kind must name the
// active technique so a stale client cannot edit a replaced tree.
func (s *Service) ApplyTree(ctx context.Context, analysisID id.AnalysisID, kind technique.Kind, m technique.Mutation) (out *TreeResult, err error) {
	ctx, span := s.startSpan(ctx, "ApplyTree", analysisID)
	defer func() { endSpan(span, err) }()

	var path tree.Path
	a, err := s.mutate(ctx, "apply_tree", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepTechnique); err != nil {
			return err
		}
		ed := a.Technique.Editor()
		if ed == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "no technique selected")
		}
		if a.Technique.Kind != kind {
			return dErrors.New(dErrors.CodeConflict, "technique was changed to "+string(a.Technique.Kind))
		}
		p, err := ed.Apply(m)
		if err != nil {
			return err
		}
		path = p
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TreeResult{Analysis: a, Path: path}, nil
}

// CandidateView is a root-cause suggestion and whether it was already
// promoted.
type CandidateView struct {
	technique.Candidate
	Selected bool `json:"selected"`
}

func (s *Service) Candidates(ctx context.Context, analysisID id.AnalysisID) ([]CandidateView, error) {
	a, _, err := s.load(ctx, analysisID, permView)
	if err != nil {
		return nil, err
	}
	ed := a.Technique.Editor()
	if ed == nil {
		return []CandidateView{}, nil
	}
	cands := ed.Candidates()
	out := make([]CandidateView, 0, len(cands))
	for _, c := range cands {
		selected := slices.ContainsFunc(a.RootCauses, func(rc models.RootCause) bool { return rc.SourceNodeID == c.NodeID })
		out = append(out, CandidateView{Candidate: c, Selected: selected})
	}
	return out, nil
}

// RootCauseInput identifies a root cause. With SourceNodeID set the cause
// is promoted from the tree and Text defaults to the node text.
type RootCauseInput struct {
	Text         string
	SourceNodeID string
}

func (s *Service) AddRootCause(ctx context.Context, analysisID id.AnalysisID, in RootCauseInput) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "AddRootCause", analysisID)
	defer func() { endSpan(span, err) }()

	text := strings.TrimSpace(in.Text)
	nodeID := strings.TrimSpace(in.SourceNodeID)
	if utf8.RuneCountInString(text) > technique.MaxTextLength {
		return nil, dErrors.New(dErrors.CodeValidation, "root cause text is too long")
	}
	return s.mutate(ctx, "add_root_cause", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepTechnique); err != nil {
			return err
		}
		rc := models.RootCause{ID: uuid.NewString(), Text: text, CreatedAt: now}
		if nodeID != "" {
			ed := a.Technique.Editor()
			if ed == nil {
				return dErrors.New(dErrors.CodeInvariantViolation, "no technique selected")
			}
			nodeText, ok := ed.Find(nodeID)
			if !ok {
				return dErrors.WithFields(dErrors.CodeValidation, "unknown tree node",
					[]dErrors.FieldError{{Field: "sourceNodeId", Message: "node not found in the active tree"}})
			}
			if rc.Text == "" {
				rc.Text = nodeText
			}
			rc.SourceNodeID = nodeID
			rc.Technique = a.Technique.Kind
		}
		if strings.TrimSpace(rc.Text) == "" {
			return dErrors.WithFields(dErrors.CodeValidation, "root cause text is required",
				[]dErrors.FieldError{{Field: "text", Message: "required"}})
		}
		return a.AddRootCause(rc, now)
	})
}

// RemoveRootCause deletes the cause and unlinks it from every planned action.
func (s *Service) RemoveRootCause(ctx context.Context, analysisID id.AnalysisID, rootCauseID string) (*models.Analysis, error) {
	return s.mutate(ctx, "remove_root_cause", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepTechnique); err != nil {
			return err
		}
		return a.RemoveRootCause(rootCauseID, now)
	})
}
