package handler

import (
	"time"

	"rcaflow/internal/tenancy/models"
)

type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	SiteCount *int      `json:"siteCount,omitempty"`
	UserCount *int      `json:"userCount,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCompanyResponse(c *models.Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCompanyDetailsResponse(d *models.CompanyDetails) CompanyResponse {
	resp := toCompanyResponse(d.Company)
	resp.SiteCount = &d.SiteCount
	resp.UserCount = &d.UserCount
	return resp
}

type SiteResponse struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toSiteResponse(s *models.Site) SiteResponse {
	return SiteResponse{
		ID:        s.ID.String(),
		CompanyID: s.CompanyID.String(),
		Name:      s.Name,
		Location:  s.Location,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// UserResponse is the public projection of a profile. The password hash
// never leaves the service.
type UserResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	CompanyID       string    `json:"companyId"`
	SiteIDs         []string  `json:"siteIds"`
	Role            string    `json:"role"`
	PermissionLevel string    `json:"permissionLevel"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func ToUserResponse(u *models.UserProfile) UserResponse {
	sites := make([]string, len(u.SiteIDs))
	for i, s := range u.SiteIDs {
		sites[i] = s.String()
	}
	return UserResponse{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		CompanyID:       u.CompanyID.String(),
		SiteIDs:         sites,
		Role:            string(u.Role),
		PermissionLevel: string(u.Permission),
		Active:          u.Active,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
