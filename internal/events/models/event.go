// Package models holds the ReportedEvent aggregate and its status machine.
package models

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

// Status values are stored verbatim; clients and reports display them as is.
type Status string

const (
	StatusPending    Status = "Pendiente"
	StatusAnalysis   Status = "En análisis"
	StatusValidation Status = "En validación"
	StatusFinalized  Status = "Finalizado"
	StatusRejected   Status = "Rechazado"
	StatusVerified   Status = "Verificado"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusPending, StatusAnalysis, StatusValidation, StatusFinalized, StatusRejected, StatusVerified}

var transitions = map[Status][]Status{
	StatusPending:    {StatusAnalysis, StatusRejected},
	StatusAnalysis:   {StatusValidation, StatusPending},
	StatusValidation: {StatusAnalysis, StatusFinalized},
	StatusFinalized:  {StatusVerified, StatusAnalysis},
	StatusRejected:   {StatusPending},
	StatusVerified:   nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if _, ok := transitions[st]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return st, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AllowsDetailEdits reports whether title, site and the other intake fields
// may still change.
func (s Status) AllowsDetailEdits() bool {
	return s == StatusPending || s == StatusAnalysis
}

type Priority string

const (
	PriorityHigh   Priority = "Alta"
	PriorityMedium Priority = "Media"
	PriorityLow    Priority = "Baja"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "priority must be Alta, Media or Baja")
}

const DateLayout = "2006-01-02"

// ParseDate validates a calendar date in ISO form. Dates are kept as strings
// so lexical order is chronological order in every backend.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "date must be YYYY-MM-DD")
	}
	return s, nil
}

type StatusChange struct {
	From   Status    `json:"from,omitempty"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
	By     id.UserID `json:"by"`
	Reason string    `json:"reason,omitempty"`
}

// Details are the intake fields shared by the event and step 1 of its analysis.
type Details struct {
	SiteID      id.SiteID `json:"siteId"`
	Site        string    `json:"site"`
	Title       string    `json:"title"`
	Equipment   string    `json:"equipment"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Priority    Priority  `json:"priority"`
	Description string    `json:"description"`
}

const (
	maxTitle       = 200
	maxShortField  = 200
	maxDescription = 5000
	maxReason      = 2000
)

// Validate checks the intake invariants. Site is the name snapshot filled
// in by the service from SiteID.
func (d *Details) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Equipment = strings.TrimSpace(d.Equipment)
	d.Type = strings.TrimSpace(d.Type)
	d.Description = strings.TrimSpace(d.Description)

	var fields []dErrors.FieldError
	required := func(field, v string, max int) {
		switch {
		case v == "":
			fields = append(fields, dErrors.FieldError{Field: field, Message: "required"})
		case utf8.RuneCountInString(v) > max:
			fields = append(fields, dErrors.FieldError{Field: field, Message: "too long"})
		}
	}
	required("title", d.Title, maxTitle)
	required("equipment", d.Equipment, maxShortField)
	required("type", d.Type, maxShortField)
	if d.SiteID.IsNil() {
		fields = append(fields, dErrors.FieldError{Field: "siteId", Message: "required"})
	}
	if _, err := ParseDate(d.Date); err != nil {
		fields = append(fields, dErrors.FieldError{Field: "date", Message: "must be YYYY-MM-DD"})
	}
	if _, err := ParsePriority(string(d.Priority)); err != nil {
		fields = append(fields, dErrors.FieldError{Field: "priority", Message: "must be Alta, Media or Baja"})
	}
	if utf8.RuneCountInString(d.Description) > maxDescription {
		fields = append(fields, dErrors.FieldError{Field: "description", Message: "too long"})
	}
	if len(fields) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, "event details are incomplete", fields)
	}
	return nil
}

// ReportedEvent is an incident reported at a site, the entry point of an RCA.
//
// Invariants:
//   - Status only moves along the transition table above
//   - every status change is appended to StatusHistory
//   - RejectionReason is set exactly while the event is Rechazado
//   - AnalysisID, once set, never changes
type ReportedEvent struct {
	ID        id.EventID   `json:"id"`
	CompanyID id.CompanyID `json:"companyId"`
	Details
	Status          Status         `json:"status"`
	ReportedBy      id.UserID      `json:"reportedBy"`
	ReportedByName  string         `json:"reportedByName"`
	AnalysisID      id.AnalysisID  `json:"analysisId"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	StatusHistory   []StatusChange `json:"statusHistory"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func NewReportedEvent(eventID id.EventID, companyID id.CompanyID, details Details, by id.UserID, byName string, now time.Time) (*ReportedEvent, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return &ReportedEvent{
		ID:             eventID,
		CompanyID:      companyID,
		Details:        details,
		Status:         StatusPending,
		ReportedBy:     by,
		ReportedByName: byName,
		StatusHistory:  []StatusChange{{To: StatusPending, At: now, By: by}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (e *ReportedEvent) CanTransition(to Status) error {
	if !e.Status.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"cannot move event from "+string(e.Status)+" to "+string(to))
	}
	return nil
}

// ApplyTransition moves the event to the next status and records it.
// Call CanTransition first.
func (e *ReportedEvent) ApplyTransition(to Status, by id.UserID, reason string, now time.Time) {
	e.StatusHistory = append(e.StatusHistory, StatusChange{From: e.Status, To: to, At: now, By: by, Reason: reason})
	e.Status = to
	if to == StatusRejected {
		e.RejectionReason = reason
	} else {
		e.RejectionReason = ""
	}
	e.UpdatedAt = now
}

func (e *ReportedEvent) CanEditDetails() error {
	if !e.Status.AllowsDetailEdits() {
		return dErrors.New(dErrors.CodeInvariantViolation, "event details cannot change once in "+string(e.Status))
	}
	return nil
}

func (e *ReportedEvent) ApplyDetails(d Details, now time.Time) {
	e.Details = d
	e.UpdatedAt = now
}

// ValidateReason checks a rejection or reopen reason.
func ValidateReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReason {
		return "", dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	return reason, nil
}
