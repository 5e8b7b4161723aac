package handler

import (
	"strings"

	"rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/service"
	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	events "rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

// EventStepRequest is the step 1 form. EventID is only read when the
// analysis is created for an already reported event.
type EventStepRequest struct {
	EventID          string                   `json:"eventId"`
	CompanyID        string                   `json:"companyId"`
	SiteID           string                   `json:"siteId"`
	Title            string                   `json:"title"`
	Equipment        string                   `json:"equipment"`
	Date             string                   `json:"date"`
	Type             string                   `json:"type"`
	Priority         string                   `json:"priority"`
	Description      string                   `json:"description"`
	ImmediateActions []models.ImmediateAction `json:"immediateActions"`

	eventID   id.EventID
	companyID id.CompanyID
	siteID    id.SiteID
}

func (r *EventStepRequest) Validate() error {
	var err error
	if strings.TrimSpace(r.EventID) != "" {
		if r.eventID, err = id.ParseEventID(r.EventID); err != nil {
			return err
		}
	}
	if strings.TrimSpace(r.CompanyID) != "" {
		if r.companyID, err = id.ParseCompanyID(r.CompanyID); err != nil {
			return err
		}
	}
	if strings.TrimSpace(r.SiteID) != "" {
		if r.siteID, err = id.ParseSiteID(r.SiteID); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventStepRequest) input() service.EventStepInput {
	return service.EventStepInput{
		CompanyID: r.companyID,
		EventID:   r.eventID,
		Details: events.Details{
			SiteID:      r.siteID,
			Title:       r.Title,
			Equipment:   r.Equipment,
			Date:        strings.TrimSpace(r.Date),
			Type:        r.Type,
			Priority:    events.Priority(strings.TrimSpace(r.Priority)),
			Description: r.Description,
		},
		ImmediateActions: r.ImmediateActions,
	}
}

type FactsStepRequest struct {
	Facts    models.Facts     `json:"facts"`
	Sessions []models.Session `json:"sessions"`
}

func (r *FactsStepRequest) Validate() error { return nil }

type ResultsStepRequest struct {
	Conclusions string `json:"conclusions"`
}

func (r *ResultsStepRequest) Validate() error { return nil }

type TechniqueRequest struct {
	Technique string `json:"technique"`
	Force     bool   `json:"force"`

	kind technique.Kind
}

func (r *TechniqueRequest) Validate() error {
	kind, err := technique.ParseKind(r.Technique)
	if err != nil {
		return err
	}
	r.kind = kind
	return nil
}

// NodeRequest carries a tree node edit. For adds, Path names the parent;
// for updates the node path comes from the URL. Technique must match the
// active technique.
type NodeRequest struct {
	Technique string  `json:"technique"`
	Path      string  `json:"path"`
	Text      *string `json:"text"`
	Question  *string `json:"question"`
	RootCause *bool   `json:"rootCause"`
	Status    *string `json:"status"`
	Level     *string `json:"level"`

	kind technique.Kind
	path tree.Path
}

func (r *NodeRequest) Validate() error {
	kind, err := technique.ParseKind(r.Technique)
	if err != nil {
		return err
	}
	r.kind = kind
	r.path, err = tree.ParsePath(r.Path)
	return err
}

func (r *NodeRequest) mutation(op technique.Op, target string, path tree.Path) technique.Mutation {
	return technique.Mutation{
		Op:        op,
		Target:    target,
		Path:      path,
		Text:      r.Text,
		Question:  r.Question,
		RootCause: r.RootCause,
		Status:    r.Status,
		Level:     r.Level,
	}
}

type RootCauseRequest struct {
	Text         string `json:"text"`
	SourceNodeID string `json:"sourceNodeId"`
}

func (r *RootCauseRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.SourceNodeID) == "" {
		return dErrors.New(dErrors.CodeValidation, "text or sourceNodeId is required")
	}
	return nil
}

type ActionRequest struct {
	Description      string   `json:"description"`
	Responsible      string   `json:"responsible"`
	ResponsibleEmail string   `json:"responsibleEmail"`
	DueDate          string   `json:"dueDate"`
	RootCauseIDs     []string `json:"rootCauseIds"`
}

func (r *ActionRequest) Validate() error { return nil }

func (r *ActionRequest) input() service.ActionInput {
	return service.ActionInput{
		Description:      r.Description,
		Responsible:      r.Responsible,
		ResponsibleEmail: r.ResponsibleEmail,
		DueDate:          r.DueDate,
		RootCauseIDs:     r.RootCauseIDs,
	}
}

type ValidationRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`

	decision models.Decision
}

func (r *ValidationRequest) Validate() error {
	d, err := models.ParseDecision(strings.ToLower(strings.TrimSpace(r.Decision)))
	if err != nil {
		return err
	}
	r.decision = d
	return nil
}

type EfficacyRequest struct {
	Effective *bool  `json:"effective"`
	Comment   string `json:"comment"`
}

func (r *EfficacyRequest) Validate() error {
	if r.Effective == nil {
		return dErrors.WithFields(dErrors.CodeValidation, "effective is required",
			[]dErrors.FieldError{{Field: "effective", Message: "required"}})
	}
	return nil
}
