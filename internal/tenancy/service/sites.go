package service

import (
	"context"
	"errors"
	"strings"

	"rcaflow/internal/access"
	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/sentinel"
	"rcaflow/pkg/requestcontext"
)

type CreateSiteCommand struct {
	// CompanyID defaults to the caller's company.
	CompanyID id.CompanyID
	Name      string
	Location  string
}

type UpdateSiteCommand struct {
	Name     *string
	Location *string
	Active   *bool
}

func (s *Service) CreateSite(ctx context.Context, cmd CreateSiteCommand) (*models.Site, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	companyID := cmd.CompanyID
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if _, err := access.RequireAdminCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if _, err := s.companies.FindByID(ctx, companyID); err != nil {
		return nil, translate(err, "company")
	}

	site, err := models.NewSite(id.NewSiteID(), companyID, cmd.Name, cmd.Location, requestcontext.Now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := s.sites.CreateIfNameAvailable(ctx, site); err != nil {
		if err = translate(err, "site"); dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "site name must be unique within the company")
		}
		return nil, err
	}
	s.emit(ctx, audit.EventSiteCreated, companyID, audit.Subject("site", site.ID), map[string]string{"name": site.Name})
	return site, nil
}

// ListSites returns the sites of company the caller can see. Users with a
// site restriction only get their own sites.
func (s *Service) ListSites(ctx context.Context, companyID id.CompanyID) ([]*models.Site, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if !access.InCompany(p, companyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "company not found")
	}
	all, err := s.sites.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, "site")
	}
	visible := make([]*models.Site, 0, len(all))
	for _, site := range all {
		if access.CanView(p, companyID, site.ID) {
			visible = append(visible, site)
		}
	}
	return visible, nil
}

func (s *Service) UpdateSite(ctx context.Context, siteID id.SiteID, cmd UpdateSiteCommand) (*models.Site, error) {
	current, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		return nil, translate(err, "site")
	}
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if !access.InCompany(p, current.CompanyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "site not found")
	}
	if _, err := access.RequireAdminCompany(ctx, current.CompanyID); err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		other, err := s.sites.FindByName(ctx, current.CompanyID, *cmd.Name)
		switch {
		case err == nil && other.ID != siteID:
			return nil, dErrors.New(dErrors.CodeConflict, "site name must be unique within the company")
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return nil, translate(err, "site")
		}
	}

	now := requestcontext.Now(ctx)
	site, err := s.sites.Execute(ctx, siteID, func(site *models.Site) error {
		if cmd.Name != nil {
			if err := site.Rename(*cmd.Name, now); err != nil {
				return asValidation(err)
			}
		}
		if cmd.Location != nil {
			site.Location = strings.TrimSpace(*cmd.Location)
		}
		if cmd.Active != nil {
			site.Active = *cmd.Active
		}
		site.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "site")
	}
	s.emit(ctx, audit.EventSiteUpdated, site.CompanyID, audit.Subject("site", site.ID), nil)
	return site, nil
}

// ResolveSite loads a site of company without principal checks. A site of
// another company is reported as not found.
func (s *Service) ResolveSite(ctx context.Context, companyID id.CompanyID, siteID id.SiteID) (*models.Site, error) {
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		return nil, translate(err, "site")
	}
	if site.CompanyID != companyID {
		return nil, dErrors.New(dErrors.CodeNotFound, "site not found")
	}
	return site, nil
}
