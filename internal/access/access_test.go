package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/requestcontext"
)

func principal(company id.CompanyID, role id.Role, level id.PermissionLevel, sites ...id.SiteID) requestcontext.Principal {
	return requestcontext.Principal{UserID: id.NewUserID(), CompanyID: company, Role: role, Permission: level, SiteIDs: sites}
}

func TestPolicy(t *testing.T) {
	company := id.NewCompanyID()
	other := id.NewCompanyID()
	siteA := id.NewSiteID()
	siteB := id.NewSiteID()

	tests := []struct {
		name      string
		p         requestcontext.Principal
		view      bool
		edit      bool
		validate  bool
		adminComp bool
	}{
		{"superadmin of another company", principal(other, id.RoleSuperAdmin, id.PermissionViewer), true, true, true, true},
		{"viewer", principal(company, id.RoleUser, id.PermissionViewer), true, false, false, false},
		{"editor", principal(company, id.RoleUser, id.PermissionEditor), true, true, false, false},
		{"validator", principal(company, id.RoleUser, id.PermissionValidator), true, true, true, false},
		{"admin viewer", principal(company, id.RoleAdmin, id.PermissionViewer), true, false, false, true},
		{"editor restricted to site B", principal(company, id.RoleUser, id.PermissionEditor, siteB), false, false, false, false},
		{"validator of another company", principal(other, id.RoleUser, id.PermissionValidator), false, false, false, false},
		{"unknown level", principal(company, id.RoleUser, ""), true, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.view, CanView(tt.p, company, siteA), "view")
			assert.Equal(t, tt.edit, CanEdit(tt.p, company, siteA), "edit")
			assert.Equal(t, tt.validate, CanValidate(tt.p, company), "validate")
			assert.Equal(t, tt.adminComp, CanAdminCompany(tt.p, company), "admin")
		})
	}
}

func TestSiteRestriction(t *testing.T) {
	company := id.NewCompanyID()
	siteA := id.NewSiteID()
	p := principal(company, id.RoleUser, id.PermissionEditor, siteA)

	assert.True(t, CanView(p, company, siteA))
	assert.False(t, CanView(p, company, id.NewSiteID()))
	assert.True(t, CanView(p, company, id.SiteID{}), "company-level documents are visible")
}

func TestNilCompanyNeverMatches(t *testing.T) {
	p := principal(id.CompanyID{}, id.RoleAdmin, id.PermissionValidator)
	assert.False(t, InCompany(p, id.CompanyID{}))
}

func TestRequire(t *testing.T) {
	company := id.NewCompanyID()

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		_, err := RequireView(context.Background(), company, id.SiteID{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("viewer cannot edit", func(t *testing.T) {
		ctx := requestcontext.WithPrincipal(context.Background(), principal(company, id.RoleUser, id.PermissionViewer))
		_, err := RequireEdit(ctx, company, id.SiteID{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("validator passes", func(t *testing.T) {
		want := principal(company, id.RoleUser, id.PermissionValidator)
		ctx := requestcontext.WithPrincipal(context.Background(), want)
		got, err := RequireValidate(ctx, company)
		require.NoError(t, err)
		assert.Equal(t, want.UserID, got.UserID)
	})

	t.Run("company admin is not platform admin", func(t *testing.T) {
		ctx := requestcontext.WithPrincipal(context.Background(), principal(company, id.RoleAdmin, id.PermissionViewer))
		_, err := RequireAdminCompany(ctx, company)
		require.NoError(t, err)
		_, err = RequirePlatformAdmin(ctx)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
