package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"rcaflow/internal/access"
	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/requestcontext"
)

func (s *Service) CreateCompany(ctx context.Context, name string) (*models.Company, error) {
	if _, err := access.RequirePlatformAdmin(ctx); err != nil {
		return nil, err
	}
	c, err := models.NewCompany(id.NewCompanyID(), strings.TrimSpace(name), requestcontext.Now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := s.companies.CreateIfNameAvailable(ctx, c); err != nil {
		if err = translate(err, "company"); dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "company name must be unique")
		}
		return nil, err
	}
	s.emit(ctx, audit.EventCompanyCreated, c.ID, audit.Subject("company", c.ID), map[string]string{"name": c.Name})
	if s.metrics != nil {
		s.metrics.IncrementCompanyCreated()
	}
	return c, nil
}

// GetCompany returns the company with its site and user counts. Members of
// the company may read it; only superadmins read other companies.
func (s *Service) GetCompany(ctx context.Context, companyID id.CompanyID) (*models.CompanyDetails, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if !access.InCompany(p, companyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "company not found")
	}
	c, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, translate(err, "company")
	}

	details := &models.CompanyDetails{Company: c}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sites, err := s.sites.ListByCompany(gctx, companyID)
		details.SiteCount = len(sites)
		return err
	})
	g.Go(func() error {
		users, err := s.users.ListByCompany(gctx, companyID)
		details.UserCount = len(users)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count company members")
	}
	return details, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	if _, err := access.RequirePlatformAdmin(ctx); err != nil {
		return nil, err
	}
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, translate(err, "company")
	}
	return companies, nil
}

// DeactivateCompany blocks login for every user of the company. Existing
// sessions stop working on their next request because the auth middleware
// reloads the company with the profile.
func (s *Service) DeactivateCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	if _, err := access.RequirePlatformAdmin(ctx); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := s.companies.Execute(ctx, companyID, func(c *models.Company) error {
		if err := c.CanDeactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
		}
		c.ApplyDeactivation(now)
		return nil
	})
	if err != nil {
		return nil, translate(err, "company")
	}
	s.emit(ctx, audit.EventCompanyDeactivated, c.ID, audit.Subject("company", c.ID), nil)
	return c, nil
}

func (s *Service) ReactivateCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	if _, err := access.RequirePlatformAdmin(ctx); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := s.companies.Execute(ctx, companyID, func(c *models.Company) error {
		if err := c.CanReactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
		}
		c.ApplyReactivation(now)
		return nil
	})
	if err != nil {
		return nil, translate(err, "company")
	}
	s.emit(ctx, audit.EventCompanyReactivated, c.ID, audit.Subject("company", c.ID), nil)
	return c, nil
}

// ResolveCompany loads a company without principal checks.
func (s *Service) ResolveCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	c, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, translate(err, "company")
	}
	return c, nil
}
