package service

import (
	"context"
	"strings"
	"time"

	"rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/requestcontext"
)

// Finalize closes the analysis once steps 1 to 5 validate. The event is
// moved to Finalizado first, through any status it skipped, and efficacy
// becomes due after the configured delay.
func (s *Service) Finalize(ctx context.Context, analysisID id.AnalysisID) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "Finalize", analysisID)
	defer func() { endSpan(span, err) }()

	current, _, err := s.load(ctx, analysisID, permEdit)
	if err != nil {
		return nil, err
	}
	if err := current.CanFinalize(); err != nil {
		return nil, err
	}
	moved, err := s.raiseEvent(ctx, current.EventID, events.StatusFinalized, "")
	if err != nil {
		return nil, err
	}

	a, err := s.mutate(ctx, "finalize", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanFinalize(); err != nil {
			return err
		}
		a.ApplyFinalize(now.Add(s.efficacyDelay).Format(events.DateLayout), now)
		return nil
	})
	if err != nil {
		if moved {
			s.syncEvent(ctx, current, events.StatusAnalysis, "finalization failed")
		}
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.AnalysisFinalized(ctx, a)
	}
	if s.metrics != nil {
		s.metrics.IncrementFinalized()
	}
	s.emit(ctx, audit.EventAnalysisFinalized, a, map[string]string{"efficacy_due": a.EfficacyDueDate})
	return a, nil
}

// VerifyEfficacy records whether the planned actions worked. Effective
// marks the event Verificado; not effective needs a comment and reopens
// the action plan.
func (s *Service) VerifyEfficacy(ctx context.Context, analysisID id.AnalysisID, effective bool, comment string) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "VerifyEfficacy", analysisID)
	defer func() { endSpan(span, err) }()

	comment = strings.TrimSpace(comment)
	if !effective && comment == "" {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "explain why the actions were not effective",
			[]dErrors.FieldError{{Field: "comment", Message: "required"}})
	}

	current, _, err := s.load(ctx, analysisID, permValidate)
	if err != nil {
		return nil, err
	}
	if err := current.CanVerifyEfficacy(); err != nil {
		return nil, err
	}
	if effective {
		if _, err := s.raiseEvent(ctx, current.EventID, events.StatusFinalized, ""); err != nil {
			return nil, err
		}
	}

	a, err := s.mutate(ctx, "verify_efficacy", analysisID, permValidate, func(p requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanVerifyEfficacy(); err != nil {
			return err
		}
		a.ApplyEfficacy(models.EfficacyCheck{
			Effective:  effective,
			Comment:    comment,
			VerifiedBy: p.UserID,
			VerifiedAt: now,
		}, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if effective {
		if _, err := s.raiseEvent(ctx, a.EventID, events.StatusVerified, ""); err != nil {
			return nil, err
		}
	} else {
		s.syncEvent(ctx, a, events.StatusAnalysis, comment)
	}
	if s.metrics != nil {
		s.metrics.IncrementEfficacy(effective)
	}
	outcome := "effective"
	if !effective {
		outcome = "not_effective"
	}
	s.emit(ctx, audit.EventEfficacyVerified, a, map[string]string{"outcome": outcome})
	return a, nil
}

// StartEfficacyReminders sends efficacy reminders every interval until ctx
// is cancelled.
func (s *Service) StartEfficacyReminders(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RemindEfficacyDueAt(ctx, time.Now()); err != nil {
				s.logger.ErrorContext(ctx, "efficacy reminders failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RemindEfficacyDueAt notifies once for every finalized analysis whose
// efficacy is due as of now. It returns how many reminders were sent.
func (s *Service) RemindEfficacyDueAt(ctx context.Context, now time.Time) (int, error) {
	finalized, err := s.analyses.ListFinalized(ctx)
	if err != nil {
		return 0, translate(err)
	}
	today := now.Format(events.DateLayout)
	sent := 0
	for _, candidate := range finalized {
		if !candidate.EfficacyDue(today) {
			continue
		}
		var due bool
		a, err := s.analyses.Execute(ctx, candidate.ID, func(a *models.Analysis) error {
			due = a.EfficacyDue(today)
			if due {
				a.EfficacyReminderSent = true
			}
			return nil
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to mark efficacy reminder", "analysis_id", candidate.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		if s.notifier != nil {
			s.notifier.EfficacyDue(ctx, a)
		}
		sent++
	}
	return sent, nil
}

// AttachEvidence appends an uploaded object's reference to step 6.
func (s *Service) AttachEvidence(ctx context.Context, analysisID id.AnalysisID, e models.Evidence) (out *models.Analysis, err error) {
	ctx, span := s.startSpan(ctx, "AttachEvidence", analysisID)
	defer func() { endSpan(span, err) }()

	a, err := s.mutate(ctx, "attach_evidence", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		if err := a.CanEditStep(models.StepResults); err != nil {
			return err
		}
		return a.AddEvidence(e, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEvidenceUploaded, a, map[string]string{"evidence_id": e.ID.String(), "file_name": e.FileName})
	return a, nil
}

// DetachEvidence removes the reference and returns it so the caller can
// delete the stored object.
func (s *Service) DetachEvidence(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) (*models.Evidence, error) {
	var removed models.Evidence
	a, err := s.mutate(ctx, "detach_evidence", analysisID, permEdit, func(_ requestcontext.Principal, a *models.Analysis, now time.Time) error {
		e, ok := a.Evidence(evidenceID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		removed = *e
		return a.RemoveEvidence(evidenceID, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventEvidenceDeleted, a, map[string]string{"evidence_id": evidenceID.String(), "file_name": removed.FileName})
	return &removed, nil
}
