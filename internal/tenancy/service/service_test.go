package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/docstore"
	"rcaflow/internal/tenancy/models"
	"rcaflow/internal/tenancy/service"
	"rcaflow/internal/tenancy/store"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/audit/publisher"
	auditmemory "rcaflow/pkg/platform/audit/store/memory"
	"rcaflow/pkg/requestcontext"
	"rcaflow/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	svc        *service.Service
	auditStore *auditmemory.InMemoryStore
	now        time.Time
	root       context.Context
	company    *models.Company
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	backend := docstore.NewMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.svc = service.New(
		store.NewCompanyStore(backend),
		store.NewSiteStore(backend),
		store.NewUserStore(backend),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.root = testutil.Context(testutil.Principal(id.NewCompanyID(), id.RoleSuperAdmin, id.PermissionValidator), s.now)

	c, err := s.svc.CreateCompany(s.root, "Minera Andina")
	s.Require().NoError(err)
	s.company = c
}

func (s *ServiceSuite) as(role id.Role, level id.PermissionLevel) context.Context {
	return testutil.Context(testutil.Principal(s.company.ID, role, level), s.now)
}

func (s *ServiceSuite) asUser(u *models.UserProfile) context.Context {
	return testutil.Context(u.Principal(), s.now)
}

func (s *ServiceSuite) createUser(ctx context.Context, address string, level id.PermissionLevel) *models.UserProfile {
	u, err := s.svc.CreateUser(ctx, service.CreateUserCommand{
		Email:      address,
		Password:   "correct-horse",
		CompanyID:  s.company.ID,
		Permission: level,
	})
	s.Require().NoError(err)
	return u
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "got %v", err)
}

func (s *ServiceSuite) TestCompanies() {
	s.Run("names are unique ignoring case and accents", func() {
		_, err := s.svc.CreateCompany(s.root, "  MINERA ÁNDINA ")
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("empty and overlong names are validation errors", func() {
		_, err := s.svc.CreateCompany(s.root, "   ")
		s.requireCode(err, dErrors.CodeValidation)
		long := make([]rune, models.MaxNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err = s.svc.CreateCompany(s.root, string(long))
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("only superadmins create companies", func() {
		_, err := s.svc.CreateCompany(s.as(id.RoleAdmin, id.PermissionValidator), "Otra")
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("deactivate then reactivate", func() {
		c, err := s.svc.DeactivateCompany(s.root, s.company.ID)
		s.Require().NoError(err)
		s.Equal(models.CompanyInactive, c.Status)

		_, err = s.svc.DeactivateCompany(s.root, s.company.ID)
		s.requireCode(err, dErrors.CodeConflict)

		c, err = s.svc.ReactivateCompany(s.root, s.company.ID)
		s.Require().NoError(err)
		s.True(c.IsActive())
	})

	s.Run("members read their company with counts, others get not found", func() {
		_, err := s.svc.CreateSite(s.root, service.CreateSiteCommand{CompanyID: s.company.ID, Name: "Planta Norte"})
		s.Require().NoError(err)
		s.createUser(s.root, "ana@minera.cl", id.PermissionEditor)

		details, err := s.svc.GetCompany(s.as(id.RoleUser, id.PermissionViewer), s.company.ID)
		s.Require().NoError(err)
		s.Equal(1, details.SiteCount)
		s.Equal(1, details.UserCount)

		outsider := testutil.Context(testutil.Principal(id.NewCompanyID(), id.RoleAdmin, id.PermissionValidator), s.now)
		_, err = s.svc.GetCompany(outsider, s.company.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("unknown company", func() {
		_, err := s.svc.DeactivateCompany(s.root, id.NewCompanyID())
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestSites() {
	admin := s.as(id.RoleAdmin, id.PermissionViewer)

	north, err := s.svc.CreateSite(admin, service.CreateSiteCommand{Name: "Planta Norte", Location: "Antofagasta"})
	s.Require().NoError(err)
	s.Equal(s.company.ID, north.CompanyID, "defaults to the caller's company")
	south, err := s.svc.CreateSite(admin, service.CreateSiteCommand{Name: "Planta Sur"})
	s.Require().NoError(err)

	s.Run("duplicate name in the same company", func() {
		_, err := s.svc.CreateSite(admin, service.CreateSiteCommand{Name: "planta norte"})
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("same name in another company is fine", func() {
		other, err := s.svc.CreateCompany(s.root, "Celulosa Sur")
		s.Require().NoError(err)
		_, err = s.svc.CreateSite(s.root, service.CreateSiteCommand{CompanyID: other.ID, Name: "Planta Norte"})
		s.NoError(err)
	})

	s.Run("plain users cannot create sites", func() {
		_, err := s.svc.CreateSite(s.as(id.RoleUser, id.PermissionValidator), service.CreateSiteCommand{Name: "X"})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("site restricted users only list their sites", func() {
		p := testutil.Principal(s.company.ID, id.RoleUser, id.PermissionEditor)
		p.SiteIDs = []id.SiteID{south.ID}
		sites, err := s.svc.ListSites(testutil.Context(p, s.now), id.CompanyID{})
		s.Require().NoError(err)
		s.Require().Len(sites, 1)
		s.Equal("Planta Sur", sites[0].Name)
	})

	s.Run("rename onto an existing name conflicts", func() {
		name := "Planta Sur"
		_, err := s.svc.UpdateSite(admin, north.ID, service.UpdateSiteCommand{Name: &name})
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("rename and deactivate", func() {
		name := "Planta Norte II"
		inactive := false
		site, err := s.svc.UpdateSite(admin, north.ID, service.UpdateSiteCommand{Name: &name, Active: &inactive})
		s.Require().NoError(err)
		s.Equal(name, site.Name)
		s.False(site.Active)
	})

	s.Run("resolve refuses sites of another company", func() {
		_, err := s.svc.ResolveSite(context.Background(), id.NewCompanyID(), north.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestUsers() {
	admin := s.as(id.RoleAdmin, id.PermissionViewer)

	s.Run("email is normalized and unique", func() {
		u := s.createUser(admin, "  Pedro.Soto@Minera.CL ", id.PermissionEditor)
		s.Equal("pedro.soto@minera.cl", u.Email)
		s.Equal("Pedro Soto", u.Name)
		s.Equal(id.RoleUser, u.Role)

		_, err := s.svc.CreateUser(admin, service.CreateUserCommand{Email: "pedro.soto@minera.cl", Password: "12345678"})
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("short password", func() {
		_, err := s.svc.CreateUser(admin, service.CreateUserCommand{Email: "x@minera.cl", Password: "short"})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("company admin cannot grant superadmin", func() {
		_, err := s.svc.CreateUser(admin, service.CreateUserCommand{
			Email: "boss@minera.cl", Password: "12345678", Role: id.RoleSuperAdmin,
		})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("sites must belong to the company", func() {
		_, err := s.svc.CreateUser(admin, service.CreateUserCommand{
			Email: "y@minera.cl", Password: "12345678", SiteIDs: []id.SiteID{id.NewSiteID()},
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("access change applies and is audited", func() {
		u := s.createUser(admin, "lucia@minera.cl", id.PermissionViewer)
		level := id.PermissionValidator
		updated, err := s.svc.UpdateUserAccess(admin, u.ID, models.AccessChange{Permission: &level})
		s.Require().NoError(err)
		s.Equal(id.PermissionValidator, updated.Permission)

		events, err := s.auditStore.ListBySubject(context.Background(), s.company.ID, audit.Subject("user", u.ID))
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventUserAccessChanged), events[1].Action)
		s.Equal("validator", events[1].Details["permissionLevel"])
	})

	s.Run("admin cannot promote to superadmin", func() {
		u := s.createUser(admin, "mario@minera.cl", id.PermissionViewer)
		role := id.RoleSuperAdmin
		_, err := s.svc.UpdateUserAccess(admin, u.ID, models.AccessChange{Role: &role})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("users read themselves but not colleagues", func() {
		a := s.createUser(admin, "a@minera.cl", id.PermissionEditor)
		b := s.createUser(admin, "b@minera.cl", id.PermissionEditor)

		got, err := s.svc.GetUser(s.asUser(a), a.ID)
		s.Require().NoError(err)
		s.Equal(a.Email, got.Email)

		_, err = s.svc.GetUser(s.asUser(a), b.ID)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("deactivation", func() {
		u := s.createUser(admin, "z@minera.cl", id.PermissionEditor)
		got, err := s.svc.DeactivateUser(admin, u.ID)
		s.Require().NoError(err)
		s.False(got.Active)

		_, err = s.svc.DeactivateUser(admin, u.ID)
		s.requireCode(err, dErrors.CodeConflict)

		_, err = s.svc.DeactivateUser(s.asUser(u), u.ID)
		s.Require().Error(err)
	})
}

func (s *ServiceSuite) TestChangePassword() {
	u := s.createUser(s.root, "carla@minera.cl", id.PermissionEditor)
	ctx := s.asUser(u)

	err := s.svc.ChangePassword(ctx, "wrong-password", "new-password-1")
	s.requireCode(err, dErrors.CodeUnauthorized)

	s.Require().NoError(s.svc.ChangePassword(ctx, "correct-horse", "new-password-1"))
	stored, err := s.svc.FindByEmail(context.Background(), "CARLA@minera.cl")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password-1")))
}

func (s *ServiceSuite) TestListRecipients() {
	s.createUser(s.root, "viewer@minera.cl", id.PermissionViewer)
	editor := s.createUser(s.root, "editor@minera.cl", id.PermissionEditor)
	validator := s.createUser(s.root, "validator@minera.cl", id.PermissionValidator)
	gone := s.createUser(s.root, "gone@minera.cl", id.PermissionValidator)
	_, err := s.svc.DeactivateUser(s.root, gone.ID)
	s.Require().NoError(err)

	recipients, err := s.svc.ListRecipients(context.Background(), s.company.ID, id.PermissionEditor)
	s.Require().NoError(err)
	var got []id.UserID
	for _, r := range recipients {
		got = append(got, r.UserID)
	}
	s.ElementsMatch([]id.UserID{editor.ID, validator.ID}, got)
}

func (s *ServiceSuite) TestAnonymousCallsAreUnauthorized() {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	_, err := s.svc.ListSites(ctx, s.company.ID)
	s.requireCode(err, dErrors.CodeUnauthorized)
}
