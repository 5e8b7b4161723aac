// Package models holds the tenancy aggregates: Company, Site and UserProfile.
package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/textnorm"
)

const MaxNameLength = 128

type CompanyStatus string

const (
	CompanyActive   CompanyStatus = "active"
	CompanyInactive CompanyStatus = "inactive"
)

// CanTransitionTo allows active <-> inactive only.
func (s CompanyStatus) CanTransitionTo(next CompanyStatus) bool {
	switch s {
	case CompanyActive:
		return next == CompanyInactive
	case CompanyInactive:
		return next == CompanyActive
	}
	return false
}

// Company is the tenant aggregate root.
//
// Invariants:
//   - Name is 1..128 characters and unique ignoring case and accents (NameKey)
//   - Status transitions: active <-> inactive only
//   - CreatedAt is immutable after construction
//
// Users of an inactive company cannot log in. Deactivation is enforced at
// login and on every authenticated request rather than cascaded to users,
// so reactivation restores access without touching user documents.
type Company struct {
	ID        id.CompanyID  `json:"id"`
	Name      string        `json:"name"`
	NameKey   string        `json:"nameKey"`
	Status    CompanyStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewCompany(companyID id.CompanyID, name string, now time.Time) (*Company, error) {
	name, err := normalizeName("company", name)
	if err != nil {
		return nil, err
	}
	return &Company{
		ID:        companyID,
		Name:      name,
		NameKey:   NameKey(name),
		Status:    CompanyActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Company) IsActive() bool {
	return c.Status == CompanyActive
}

func (c *Company) CanDeactivate() error {
	if !c.Status.CanTransitionTo(CompanyInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "company is already inactive")
	}
	return nil
}

func (c *Company) ApplyDeactivation(now time.Time) {
	c.Status = CompanyInactive
	c.UpdatedAt = now
}

func (c *Company) CanReactivate() error {
	if !c.Status.CanTransitionTo(CompanyActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "company is already active")
	}
	return nil
}

func (c *Company) ApplyReactivation(now time.Time) {
	c.Status = CompanyActive
	c.UpdatedAt = now
}

// CompanyDetails is a company with its head counts, returned by GetCompany.
type CompanyDetails struct {
	*Company
	SiteCount int
	UserCount int
}

// NameKey is the uniqueness key of company and site names.
func NameKey(name string) string {
	return strings.Join(strings.Fields(textnorm.Fold(name)), " ")
}

func normalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvariantViolation, kind+" name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", dErrors.New(dErrors.CodeInvariantViolation, kind+" name must be 128 characters or less")
	}
	return name, nil
}
