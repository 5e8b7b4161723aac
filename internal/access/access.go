// Package access is the role-based permission policy of the RCA workflow.
//
// Every function is pure over a requestcontext.Principal:
//
//   - superadmins pass every check
//   - a principal only ever sees its own company
//   - a principal with no site restriction sees every site of its company
//   - editing needs the editor level, validating needs the validator level
//   - company administration needs the admin role
package access

import (
	"context"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/requestcontext"
)

func IsPlatformAdmin(p requestcontext.Principal) bool {
	return p.Role == id.RoleSuperAdmin
}

// InCompany reports whether p may see anything of company at all.
func InCompany(p requestcontext.Principal, company id.CompanyID) bool {
	return IsPlatformAdmin(p) || (!company.IsNil() && p.CompanyID == company)
}

// CanView reports whether p may read documents of company attached to site.
// A nil site means a company-level document.
func CanView(p requestcontext.Principal, company id.CompanyID, site id.SiteID) bool {
	if IsPlatformAdmin(p) {
		return true
	}
	if !InCompany(p, company) {
		return false
	}
	return site.IsNil() || p.CoversSite(site)
}

func CanEdit(p requestcontext.Principal, company id.CompanyID, site id.SiteID) bool {
	if IsPlatformAdmin(p) {
		return true
	}
	return CanView(p, company, site) && p.Permission.AtLeast(id.PermissionEditor)
}

func CanValidate(p requestcontext.Principal, company id.CompanyID) bool {
	if IsPlatformAdmin(p) {
		return true
	}
	return InCompany(p, company) && p.Permission.AtLeast(id.PermissionValidator)
}

// CanAdminCompany reports whether p may manage sites and users of company.
func CanAdminCompany(p requestcontext.Principal, company id.CompanyID) bool {
	if IsPlatformAdmin(p) {
		return true
	}
	return p.Role == id.RoleAdmin && InCompany(p, company)
}

// Principal returns the authenticated principal or an unauthorized error.
func Principal(ctx context.Context) (requestcontext.Principal, error) {
	p, ok := requestcontext.PrincipalFrom(ctx)
	if !ok || p.UserID.IsNil() {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return p, nil
}

func RequirePlatformAdmin(ctx context.Context) (requestcontext.Principal, error) {
	p, err := Principal(ctx)
	if err != nil {
		return p, err
	}
	if !IsPlatformAdmin(p) {
		return p, dErrors.New(dErrors.CodeForbidden, "platform administrator role required")
	}
	return p, nil
}

func RequireView(ctx context.Context, company id.CompanyID, site id.SiteID) (requestcontext.Principal, error) {
	p, err := Principal(ctx)
	if err != nil {
		return p, err
	}
	if !CanView(p, company, site) {
		return p, dErrors.New(dErrors.CodeForbidden, "not allowed to view this site")
	}
	return p, nil
}

func RequireEdit(ctx context.Context, company id.CompanyID, site id.SiteID) (requestcontext.Principal, error) {
	p, err := Principal(ctx)
	if err != nil {
		return p, err
	}
	if !CanEdit(p, company, site) {
		return p, dErrors.New(dErrors.CodeForbidden, "editor permission required")
	}
	return p, nil
}

func RequireValidate(ctx context.Context, company id.CompanyID) (requestcontext.Principal, error) {
	p, err := Principal(ctx)
	if err != nil {
		return p, err
	}
	if !CanValidate(p, company) {
		return p, dErrors.New(dErrors.CodeForbidden, "validator permission required")
	}
	return p, nil
}

func RequireAdminCompany(ctx context.Context, company id.CompanyID) (requestcontext.Principal, error) {
	p, err := Principal(ctx)
	if err != nil {
		return p, err
	}
	if !CanAdminCompany(p, company) {
		return p, dErrors.New(dErrors.CodeForbidden, "company administrator role required")
	}
	return p, nil
}
