// Package audit exposes the audit trail of a company to its administrators.
package audit

import (
	"context"

	"rcaflow/internal/access"
	id "rcaflow/pkg/domain"
	platformaudit "rcaflow/pkg/platform/audit"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Reader is implemented by the audit publisher.
type Reader interface {
	List(ctx context.Context, companyID id.CompanyID, limit int) ([]platformaudit.Event, error)
	History(ctx context.Context, companyID id.CompanyID, subject string) ([]platformaudit.Event, error)
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

type Query struct {
	// CompanyID defaults to the caller's company.
	CompanyID id.CompanyID
	// Subject narrows the trail to one document, e.g. "analysis:<uuid>".
	Subject string
	Limit   int
}

// List returns the newest events of a company, or the full history of one
// subject in order.
func (s *Service) List(ctx context.Context, q Query) ([]platformaudit.Event, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	companyID := q.CompanyID
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if _, err := access.RequireAdminCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if q.Subject != "" {
		return s.reader.History(ctx, companyID, q.Subject)
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return s.reader.List(ctx, companyID, limit)
}
