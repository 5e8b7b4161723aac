package models

import (
	"slices"
	"strings"
	"time"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/email"
	"rcaflow/pkg/requestcontext"
)

const MinPasswordLength = 8

// UserProfile is the full profile of a user: identity, company membership,
// role, workflow permission level and site restriction.
//
// Invariants:
//   - Email is a lowercase bare address, unique across the platform
//   - CompanyID is set for every role
//   - PasswordHash is a bcrypt hash; it is stored but never leaves the
//     service (see handler responses)
//   - empty SiteIDs means every site of the company
type UserProfile struct {
	ID           id.UserID          `json:"id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	CompanyID    id.CompanyID       `json:"companyId"`
	SiteIDs      []id.SiteID        `json:"siteIds"`
	Role         id.Role            `json:"role"`
	Permission   id.PermissionLevel `json:"permissionLevel"`
	PasswordHash string             `json:"passwordHash"`
	Active       bool               `json:"active"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func NewUserProfile(userID id.UserID, address, name string, companyID id.CompanyID, role id.Role,
	level id.PermissionLevel, siteIDs []id.SiteID, passwordHash string, now time.Time) (*UserProfile, error) {
	address = email.Normalize(address)
	if !email.Valid(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid email address")
	}
	if companyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email.DisplayName(address)
	}
	return &UserProfile{
		ID:           userID,
		Email:        address,
		Name:         name,
		CompanyID:    companyID,
		SiteIDs:      dedupeSites(siteIDs),
		Role:         role,
		Permission:   level,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Principal projects the profile onto the request principal.
func (u *UserProfile) Principal() requestcontext.Principal {
	return requestcontext.Principal{
		UserID:     u.ID,
		CompanyID:  u.CompanyID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		Permission: u.Permission,
		SiteIDs:    slices.Clone(u.SiteIDs),
	}
}

func (u *UserProfile) CanDeactivate() error {
	if !u.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "user is already inactive")
	}
	return nil
}

func (u *UserProfile) ApplyDeactivation(now time.Time) {
	u.Active = false
	u.UpdatedAt = now
}

// AccessChange carries the optional fields of an access update.
type AccessChange struct {
	Role       *id.Role
	Permission *id.PermissionLevel
	SiteIDs    *[]id.SiteID
}

func (c AccessChange) IsEmpty() bool {
	return c.Role == nil && c.Permission == nil && c.SiteIDs == nil
}

func (u *UserProfile) ApplyAccess(change AccessChange, now time.Time) {
	if change.Role != nil {
		u.Role = *change.Role
	}
	if change.Permission != nil {
		u.Permission = *change.Permission
	}
	if change.SiteIDs != nil {
		u.SiteIDs = dedupeSites(*change.SiteIDs)
	}
	u.UpdatedAt = now
}

// Recipient is the addressable subset of a profile used by notifications.
type Recipient struct {
	UserID id.UserID
	Email  string
	Name   string
}

func dedupeSites(in []id.SiteID) []id.SiteID {
	out := make([]id.SiteID, 0, len(in))
	for _, s := range in {
		if !s.IsNil() && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
