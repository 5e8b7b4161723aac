// Package store persists tenancy aggregates in the document store. Stores
// return sentinel errors; the service translates them.
package store

import (
	"context"
	"errors"
	"fmt"

	"rcaflow/internal/docstore"
	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/platform/sentinel"
)

type CompanyStore struct {
	docs *docstore.Collection[models.Company]
}

func NewCompanyStore(backend docstore.Backend) *CompanyStore {
	return &CompanyStore{docs: docstore.NewCollection[models.Company](backend, docstore.Companies)}
}

// CreateIfNameAvailable fails with sentinel.ErrConflict when another company
// has the same NameKey. The Postgres backend also enforces this with a
// unique index.
func (s *CompanyStore) CreateIfNameAvailable(ctx context.Context, c *models.Company) error {
	if _, err := s.FindByName(ctx, c.Name); err == nil {
		return fmt.Errorf("company name %q: %w", c.Name, sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	return s.docs.Create(ctx, c.ID.String(), c)
}

func (s *CompanyStore) FindByID(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	return s.docs.Get(ctx, companyID.String())
}

func (s *CompanyStore) FindByName(ctx context.Context, name string) (*models.Company, error) {
	return s.docs.First(ctx, docstore.Where("nameKey", models.NameKey(name)))
}

func (s *CompanyStore) List(ctx context.Context) ([]*models.Company, error) {
	return s.docs.Find(ctx, docstore.Query{}.Order("nameKey", false))
}

// Execute runs fn against the stored company and persists the result
// atomically. An error from fn aborts the write.
func (s *CompanyStore) Execute(ctx context.Context, companyID id.CompanyID, fn func(*models.Company) error) (*models.Company, error) {
	return s.docs.Update(ctx, companyID.String(), fn)
}

type SiteStore struct {
	docs *docstore.Collection[models.Site]
}

func NewSiteStore(backend docstore.Backend) *SiteStore {
	return &SiteStore{docs: docstore.NewCollection[models.Site](backend, docstore.Sites)}
}

func (s *SiteStore) CreateIfNameAvailable(ctx context.Context, site *models.Site) error {
	if _, err := s.FindByName(ctx, site.CompanyID, site.Name); err == nil {
		return fmt.Errorf("site name %q: %w", site.Name, sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	return s.docs.Create(ctx, site.ID.String(), site)
}

func (s *SiteStore) FindByID(ctx context.Context, siteID id.SiteID) (*models.Site, error) {
	return s.docs.Get(ctx, siteID.String())
}

func (s *SiteStore) FindByName(ctx context.Context, companyID id.CompanyID, name string) (*models.Site, error) {
	return s.docs.First(ctx, docstore.Where("companyId", companyID).And("nameKey", models.NameKey(name)))
}

func (s *SiteStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Site, error) {
	return s.docs.Find(ctx, docstore.Where("companyId", companyID).Order("nameKey", false))
}

func (s *SiteStore) Execute(ctx context.Context, siteID id.SiteID, fn func(*models.Site) error) (*models.Site, error) {
	return s.docs.Update(ctx, siteID.String(), fn)
}

type UserStore struct {
	docs *docstore.Collection[models.UserProfile]
}

func NewUserStore(backend docstore.Backend) *UserStore {
	return &UserStore{docs: docstore.NewCollection[models.UserProfile](backend, docstore.Users)}
}

// CreateIfEmailAvailable fails with sentinel.ErrConflict when the address is
// already registered.
func (s *UserStore) CreateIfEmailAvailable(ctx context.Context, u *models.UserProfile) error {
	if _, err := s.FindByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("email %q: %w", u.Email, sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	return s.docs.Create(ctx, u.ID.String(), u)
}

func (s *UserStore) FindByID(ctx context.Context, userID id.UserID) (*models.UserProfile, error) {
	return s.docs.Get(ctx, userID.String())
}

// FindByEmail expects an already normalized address.
func (s *UserStore) FindByEmail(ctx context.Context, address string) (*models.UserProfile, error) {
	return s.docs.First(ctx, docstore.Where("email", address))
}

func (s *UserStore) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error) {
	return s.docs.Find(ctx, docstore.Where("companyId", companyID).Order("email", false))
}

func (s *UserStore) ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error) {
	return s.docs.Find(ctx, docstore.Where("companyId", companyID).And("active", true).Order("email", false))
}

func (s *UserStore) Execute(ctx context.Context, userID id.UserID, fn func(*models.UserProfile) error) (*models.UserProfile, error) {
	return s.docs.Update(ctx, userID.String(), fn)
}
