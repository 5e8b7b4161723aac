package handler

import (
	"net/url"
	"strconv"
	"strings"

	"rcaflow/internal/events/models"
	"rcaflow/internal/events/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

// EventRequest carries the intake fields for Report and UpdateDetails.
// Field-level checks happen in the model so the client gets every field
// error at once.
type EventRequest struct {
	CompanyID   string `json:"companyId"`
	SiteID      string `json:"siteId"`
	Title       string `json:"title"`
	Equipment   string `json:"equipment"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`

	companyID id.CompanyID
	siteID    id.SiteID
}

func (r *EventRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) != "" {
		companyID, err := id.ParseCompanyID(r.CompanyID)
		if err != nil {
			return err
		}
		r.companyID = companyID
	}
	if strings.TrimSpace(r.SiteID) != "" {
		siteID, err := id.ParseSiteID(r.SiteID)
		if err != nil {
			return err
		}
		r.siteID = siteID
	}
	return nil
}

func (r *EventRequest) details() models.Details {
	return models.Details{
		SiteID:      r.siteID,
		Title:       r.Title,
		Equipment:   r.Equipment,
		Date:        strings.TrimSpace(r.Date),
		Type:        r.Type,
		Priority:    models.Priority(strings.TrimSpace(r.Priority)),
		Description: r.Description,
	}
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// parseListQuery reads the List filters from the query string.
func parseListQuery(v url.Values) (service.ListQuery, error) {
	q := service.ListQuery{
		Type:   strings.TrimSpace(v.Get("type")),
		Search: strings.TrimSpace(v.Get("q")),
	}
	var err error
	if raw := v.Get("companyId"); raw != "" {
		if q.CompanyID, err = id.ParseCompanyID(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("siteId"); raw != "" {
		if q.SiteID, err = id.ParseSiteID(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("status"); raw != "" {
		if q.Status, err = models.ParseStatus(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("priority"); raw != "" {
		if q.Priority, err = models.ParsePriority(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("from"); raw != "" {
		if q.From, err = models.ParseDate(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("to"); raw != "" {
		if q.To, err = models.ParseDate(raw); err != nil {
			return q, err
		}
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return q, dErrors.New(dErrors.CodeInvalidInput, "from must not be after to")
	}
	if raw := v.Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			return q, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		q.Limit = n
	}
	return q, nil
}
