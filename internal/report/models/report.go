// Package models assembles the final report of an analysis from the
// analysis document and its reported event.
package models

import (
	"slices"
	"time"

	analysis "rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/technique"
	events "rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
)

type Report struct {
	AnalysisID  id.AnalysisID `json:"analysisId"`
	EventID     id.EventID    `json:"eventId"`
	CompanyID   id.CompanyID  `json:"companyId"`
	GeneratedAt time.Time     `json:"generatedAt"`

	Summary          Summary                    `json:"summary"`
	ImmediateActions []analysis.ImmediateAction `json:"immediateActions"`
	Facts            analysis.Facts             `json:"facts"`
	Sessions         []analysis.Session         `json:"sessions"`
	Technique        Technique                  `json:"technique"`
	RootCauses       []analysis.RootCause       `json:"rootCauses"`
	Actions          []Action                   `json:"actions"`
	Evidences        []analysis.Evidence        `json:"evidences"`
	Efficacy         Efficacy                   `json:"efficacy"`
	Conclusions      string                     `json:"conclusions,omitempty"`
}

type Summary struct {
	events.Details
	// Status is empty when the event could not be loaded.
	Status      events.Status `json:"status,omitempty"`
	ReportedBy  string        `json:"reportedBy,omitempty"`
	CurrentStep analysis.Step `json:"currentStep"`
	Finalized   bool          `json:"finalized"`
	FinalizedAt *time.Time    `json:"finalizedAt,omitempty"`
}

type Technique struct {
	Kind    technique.Kind `json:"kind,omitempty"`
	Outline []OutlineLine  `json:"outline"`
}

type OutlineLine struct {
	Depth int    `json:"depth"`
	Text  string `json:"text"`
}

// Action is a planned action with its references resolved for reading.
type Action struct {
	analysis.PlannedAction
	RootCauses []string             `json:"rootCauses"`
	Validation *analysis.Validation `json:"validation,omitempty"`
	Evidences  []string             `json:"evidences"`
	Overdue    bool                 `json:"overdue"`
}

// Status is pending, approved or rejected.
func (a Action) Status() string {
	if a.Validation == nil {
		return "pending"
	}
	return string(a.Validation.Decision)
}

type Efficacy struct {
	DueDate  string                   `json:"dueDate,omitempty"`
	Verified bool                     `json:"verified"`
	Checks   []analysis.EfficacyCheck `json:"checks"`
}

// Build flattens a into a report. e may be nil, in which case the summary
// falls back to the analysis' snapshot of the event.
func Build(a *analysis.Analysis, e *events.ReportedEvent, now time.Time) *Report {
	r := &Report{
		AnalysisID:       a.ID,
		EventID:          a.EventID,
		CompanyID:        a.CompanyID,
		GeneratedAt:      now,
		ImmediateActions: a.ImmediateActions,
		Facts:            a.Facts,
		Sessions:         a.Sessions,
		RootCauses:       a.RootCauses,
		Evidences:        a.Evidences,
		Conclusions:      a.Conclusions,
		Summary: Summary{
			Details:     a.Event,
			CurrentStep: a.CurrentStep,
			Finalized:   a.Finalized,
			FinalizedAt: a.FinalizedAt,
		},
		Technique: Technique{Kind: a.Technique.Kind, Outline: []OutlineLine{}},
		Efficacy: Efficacy{
			DueDate:  a.EfficacyDueDate,
			Verified: a.EfficacyVerified(),
			Checks:   a.EfficacyChecks,
		},
	}
	if e != nil {
		r.Summary.Details = e.Details
		r.Summary.Status = e.Status
		r.Summary.ReportedBy = e.ReportedByName
	}
	if ed := a.Technique.Editor(); ed != nil {
		for _, l := range ed.Outline() {
			r.Technique.Outline = append(r.Technique.Outline, OutlineLine{Depth: l.Depth, Text: l.Text})
		}
	}

	today := now.Format(events.DateLayout)
	overdue := a.OverdueActions(today)
	r.Actions = make([]Action, 0, len(a.Actions))
	for _, pa := range a.Actions {
		row := Action{PlannedAction: pa, RootCauses: []string{}, Evidences: []string{}}
		for _, rcID := range pa.RootCauseIDs {
			if rc, ok := a.RootCause(rcID); ok {
				row.RootCauses = append(row.RootCauses, rc.Text)
			}
		}
		if v, ok := a.ValidationFor(pa.ID); ok {
			vc := *v
			row.Validation = &vc
		}
		for _, ev := range a.Evidences {
			if ev.ActionID == pa.ID {
				row.Evidences = append(row.Evidences, ev.FileName)
			}
		}
		row.Overdue = slices.ContainsFunc(overdue, func(o analysis.PlannedAction) bool { return o.ID == pa.ID })
		r.Actions = append(r.Actions, row)
	}
	return r
}
