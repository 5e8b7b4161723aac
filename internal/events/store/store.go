// Package store persists reported events in the reportedEvents collection.
package store

import (
	"context"

	"rcaflow/internal/docstore"
	"rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
)

type EventStore struct {
	docs *docstore.Collection[models.ReportedEvent]
}

func New(backend docstore.Backend) *EventStore {
	return &EventStore{docs: docstore.NewCollection[models.ReportedEvent](backend, docstore.Events)}
}

func (s *EventStore) Create(ctx context.Context, e *models.ReportedEvent) error {
	return s.docs.Create(ctx, e.ID.String(), e)
}

func (s *EventStore) FindByID(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error) {
	return s.docs.Get(ctx, eventID.String())
}

// Filter narrows ListByCompany with equality matches the backends can push
// down. Zero values are ignored.
type Filter struct {
	Status   models.Status
	SiteID   id.SiteID
	Type     string
	Priority models.Priority
}

// ListByCompany returns the company's events, newest event date first.
func (s *EventStore) ListByCompany(ctx context.Context, companyID id.CompanyID, f Filter) ([]*models.ReportedEvent, error) {
	q := docstore.Where("companyId", companyID)
	if f.Status != "" {
		q = q.And("status", f.Status)
	}
	if !f.SiteID.IsNil() {
		q = q.And("siteId", f.SiteID)
	}
	if f.Type != "" {
		q = q.And("type", f.Type)
	}
	if f.Priority != "" {
		q = q.And("priority", f.Priority)
	}
	return s.docs.Find(ctx, q.Order("date", true))
}

// Execute runs fn against the stored event and persists the result
// atomically. An error from fn aborts the write.
func (s *EventStore) Execute(ctx context.Context, eventID id.EventID, fn func(*models.ReportedEvent) error) (*models.ReportedEvent, error) {
	return s.docs.Update(ctx, eventID.String(), fn)
}
