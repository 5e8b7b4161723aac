package models

import (
	"strings"
	"time"

	id "rcaflow/pkg/domain"
)

// Site is a plant or facility of a company. Reported events are filed
// against a site and users can be restricted to a subset of sites.
//
// Name is unique per company (NameKey). Sites are never deleted, only
// deactivated, so historical events keep a valid reference.
type Site struct {
	ID        id.SiteID    `json:"id"`
	CompanyID id.CompanyID `json:"companyId"`
	Name      string       `json:"name"`
	NameKey   string       `json:"nameKey"`
	Location  string       `json:"location,omitempty"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func NewSite(siteID id.SiteID, companyID id.CompanyID, name, location string, now time.Time) (*Site, error) {
	name, err := normalizeName("site", name)
	if err != nil {
		return nil, err
	}
	return &Site{
		ID:        siteID,
		CompanyID: companyID,
		Name:      name,
		NameKey:   NameKey(name),
		Location:  strings.TrimSpace(location),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Site) Rename(name string, now time.Time) error {
	name, err := normalizeName("site", name)
	if err != nil {
		return err
	}
	s.Name = name
	s.NameKey = NameKey(name)
	s.UpdatedAt = now
	return nil
}
