package handler

import (
	"strings"

	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

type CreateCompanyRequest struct {
	Name string `json:"name"`
}

func (r *CreateCompanyRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 4*models.MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	return nil
}

type CreateSiteRequest struct {
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	Location  string `json:"location"`

	companyID id.CompanyID
}

func (r *CreateSiteRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Location) > 512 {
		return dErrors.New(dErrors.CodeValidation, "location must be at most 512 characters")
	}
	if strings.TrimSpace(r.CompanyID) != "" {
		companyID, err := id.ParseCompanyID(r.CompanyID)
		if err != nil {
			return err
		}
		r.companyID = companyID
	}
	return nil
}

type UpdateSiteRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Active   *bool   `json:"active"`
}

func (r *UpdateSiteRequest) Validate() error {
	if r.Name == nil && r.Location == nil && r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.Location != nil && len(*r.Location) > 512 {
		return dErrors.New(dErrors.CodeValidation, "location must be at most 512 characters")
	}
	return nil
}

type CreateUserRequest struct {
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	Password        string   `json:"password"`
	CompanyID       string   `json:"companyId"`
	SiteIDs         []string `json:"siteIds"`
	Role            string   `json:"role"`
	PermissionLevel string   `json:"permissionLevel"`

	companyID  id.CompanyID
	siteIDs    []id.SiteID
	role       id.Role
	permission id.PermissionLevel
}

func (r *CreateUserRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if strings.TrimSpace(r.CompanyID) != "" {
		companyID, err := id.ParseCompanyID(r.CompanyID)
		if err != nil {
			return err
		}
		r.companyID = companyID
	}
	siteIDs, err := parseSites(r.SiteIDs)
	if err != nil {
		return err
	}
	r.siteIDs = siteIDs
	r.role = id.RoleUser
	if r.Role != "" {
		if r.role, err = id.ParseRole(r.Role); err != nil {
			return err
		}
	}
	r.permission = id.PermissionViewer
	if r.PermissionLevel != "" {
		if r.permission, err = id.ParsePermissionLevel(r.PermissionLevel); err != nil {
			return err
		}
	}
	return nil
}

type UpdateAccessRequest struct {
	Role            *string   `json:"role"`
	PermissionLevel *string   `json:"permissionLevel"`
	SiteIDs         *[]string `json:"siteIds"`

	change models.AccessChange
}

func (r *UpdateAccessRequest) Validate() error {
	if r.Role != nil {
		role, err := id.ParseRole(*r.Role)
		if err != nil {
			return err
		}
		r.change.Role = &role
	}
	if r.PermissionLevel != nil {
		level, err := id.ParsePermissionLevel(*r.PermissionLevel)
		if err != nil {
			return err
		}
		r.change.Permission = &level
	}
	if r.SiteIDs != nil {
		sites, err := parseSites(*r.SiteIDs)
		if err != nil {
			return err
		}
		r.change.SiteIDs = &sites
	}
	if r.change.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "currentPassword and newPassword are required")
	}
	if r.CurrentPassword == r.NewPassword {
		return dErrors.New(dErrors.CodeValidation, "new password must differ from the current one")
	}
	return nil
}

const maxSitesPerUser = 100

func parseSites(raw []string) ([]id.SiteID, error) {
	if len(raw) > maxSitesPerUser {
		return nil, dErrors.New(dErrors.CodeValidation, "too many sites")
	}
	out := make([]id.SiteID, 0, len(raw))
	for _, s := range raw {
		siteID, err := id.ParseSiteID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, siteID)
	}
	return out, nil
}
