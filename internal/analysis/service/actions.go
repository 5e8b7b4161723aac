package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/email"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/textnorm"
	"rcaflow/pkg/requestcontext"
)

// ActionInput is a planned action as typed in step 4. Blank fields are
// kept as drafts; Advance reports them.
type ActionInput struct {
	Description      string
	Responsible      string
	ResponsibleEmail string
	DueDate          string
	RootCauseIDs     []string
}

func (in ActionInput) normalize() (models.PlannedAction, error) {
	pa := models.PlannedAction{
		Description:  strings.TrimSpace(in.Description),
		Responsible:  strings.TrimSpace(in.Responsible),
		DueDate:      strings.TrimSpace(in.DueDate),
		RootCauseIDs: textnorm.DedupeAndTrim(in.RootCauseIDs),
	}
	var fields []dErrors.FieldError
	if utf8.RuneCountInString(pa.Description) > maxFieldRunes {
		fields = append(fields, dErrors.FieldError{Field: "description", Message: "too long"})
	}
	if addr := strings.TrimSpace(in.ResponsibleEmail); addr != "" {
		if !email.Valid(addr) {
			fields = append(fields, dErrors.FieldError{Field: "responsibleEmail", Message: "invalid email"})
		}
		pa.ResponsibleEmail = email.Normalize(addr)
	}
	if pa.DueDate != "" {
		if _, err := events.ParseDate(pa.DueDate); err != nil {
			fields = append(fields, dErrors.FieldError{Field: "dueDate", Message: "must be YYYY-MM-DD"})
		}
	}
	if pa.RootCauseIDs == nil {
		pa.RootCauseIDs = []string{}
	}
	if len(fields) > 0 {
		return pa, dErrors.WithFields(dErrors.CodeValidation, "planned action is invalid", fields)
	}
	return pa, nil
}

func (s *Service) AddAction(ctx context.Context, analysisID id.AnalysisID, in ActionInput) (*models.Analysis, error) {
	pa, err := in.normalize()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "add_action", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepActionPlan); err != nil {
			return err
		}
		pa.ID = uuid.NewString()
		pa.CreatedAt = now
		pa.UpdatedAt = now
		return a.AddAction(pa, now)
	})
}

// UpdateAction replaces the action; its validation, if any, is dropped.
func (s *Service) UpdateAction(ctx context.Context, analysisID id.AnalysisID, actionID string, in ActionInput) (*models.Analysis, error) {
	pa, err := in.normalize()
	if err != nil {
		return nil, err
	}
	pa.ID = actionID
	return s.mutate(ctx, "update_action", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepActionPlan); err != nil {
			return err
		}
		return a.UpdateAction(pa, now)
	})
}

func (s *Service) RemoveAction(ctx context.Context, analysisID id.AnalysisID, actionID string) (*models.Analysis, error) {
	return s.mutate(ctx, "remove_action", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepActionPlan); err != nil {
			return err
		}
		return a.RemoveAction(actionID, now)
	})
}

// ValidateAction records a validator's decision on a planned action. A
// rejection needs a comment, sends the analysis back to step 4 and moves
// the event back to En análisis.
func (s *Service) ValidateAction(ctx context.Context, analysisID id.AnalysisID, actionID string, decision models.Decision, comment string) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "ValidateAction", analysisID)
	defer func() { endSpan(span, err) }()

	comment = strings.TrimSpace(comment)
	if decision == models.DecisionRejected && comment == "" {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "a rejection needs a comment",
			[]dErrors.FieldError{{Field: "comment", Message: "required"}})
	}
	if utf8.RuneCountInString(comment) > maxFieldRunes {
		return nil, dErrors.New(dErrors.CodeValidation, "comment is too long")
	}

	var v models.Validation
	a, err := s.mutate(ctx, "validate_action", analysisID, permValidate, func(p requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanValidate(actionID); err != nil {
			return err
		}
		v = models.Validation{
			ActionID:      actionID,
			Decision:      decision,
			Comment:       comment,
			ValidatedBy:   p.UserID,
			ValidatorName: p.Name,
			ValidatedAt:   now,
		}
		a.ApplyValidation(v, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision == models.DecisionRejected {
		s.syncEvent(ctx, a, events.StatusAnalysis, comment)
		if action, ok := a.Action(actionID); ok && s.notifier != nil {
			s.notifier.ActionRejected(ctx, a, *action, v)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(decision))
	}
	s.emit(ctx, audit.EventActionValidated, a, map[string]string{"action_id": actionID, "decision": string(decision)})
	return a, nil
}
