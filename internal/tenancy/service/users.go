package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rcaflow/internal/access"
	"rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/email"
	"rcaflow/pkg/platform/audit"
	"rcaflow/pkg/requestcontext"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

type CreateUserCommand struct {
	Email    string
	Name     string
	Password string
	// CompanyID defaults to the caller's company.
	CompanyID  id.CompanyID
	SiteIDs    []id.SiteID
	Role       id.Role
	Permission id.PermissionLevel
}

func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (*models.UserProfile, error) {
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
	if cmd.Role == "" {
		cmd.Role = id.RoleUser
	}
	if cmd.Permission == "" {
		cmd.Permission = id.PermissionViewer
	}
	if cmd.Role == id.RoleSuperAdmin && !access.IsPlatformAdmin(p) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only a superadmin can grant the superadmin role")
	}
	if _, err := s.companies.FindByID(ctx, companyID); err != nil {
		return nil, translate(err, "company")
	}
	if err := s.checkSites(ctx, companyID, cmd.SiteIDs); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}

	u, err := models.NewUserProfile(id.NewUserID(), cmd.Email, cmd.Name, companyID, cmd.Role, cmd.Permission,
		cmd.SiteIDs, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := s.users.CreateIfEmailAvailable(ctx, u); err != nil {
		if err = translate(err, "user"); dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, err
	}
	s.emit(ctx, audit.EventUserCreated, companyID, audit.Subject("user", u.ID), map[string]string{
		"role":            string(u.Role),
		"permissionLevel": string(u.Permission),
	})
	if s.metrics != nil {
		s.metrics.IncrementUserCreated()
	}
	return u, nil
}

// GetUser returns a profile to its owner or to an administrator of its company.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.UserProfile, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	if u.ID != p.UserID && !access.CanAdminCompany(p, u.CompanyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error) {
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if companyID.IsNil() {
		companyID = p.CompanyID
	}
	if _, err := access.RequireAdminCompany(ctx, companyID); err != nil {
		return nil, err
	}
	users, err := s.users.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return users, nil
}

// UpdateUserAccess changes role, permission level and site restriction.
// Only a superadmin may grant the superadmin role or modify a superadmin.
func (s *Service) UpdateUserAccess(ctx context.Context, userID id.UserID, change models.AccessChange) (*models.UserProfile, error) {
	if change.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no access change requested")
	}
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if !access.InCompany(p, target.CompanyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if _, err := access.RequireAdminCompany(ctx, target.CompanyID); err != nil {
		return nil, err
	}
	if !access.IsPlatformAdmin(p) {
		if target.Role == id.RoleSuperAdmin || (change.Role != nil && *change.Role == id.RoleSuperAdmin) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only a superadmin can grant the superadmin role")
		}
	}
	if change.SiteIDs != nil {
		if err := s.checkSites(ctx, target.CompanyID, *change.SiteIDs); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	u, err := s.users.Execute(ctx, userID, func(u *models.UserProfile) error {
		u.ApplyAccess(change, now)
		return nil
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	s.emit(ctx, audit.EventUserAccessChanged, u.CompanyID, audit.Subject("user", u.ID), map[string]string{
		"role":            string(u.Role),
		"permissionLevel": string(u.Permission),
	})
	return u, nil
}

func (s *Service) DeactivateUser(ctx context.Context, userID id.UserID) (*models.UserProfile, error) {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	p, err := access.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if !access.InCompany(p, target.CompanyID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if _, err := access.RequireAdminCompany(ctx, target.CompanyID); err != nil {
		return nil, err
	}
	if target.ID == p.UserID {
		return nil, dErrors.New(dErrors.CodeConflict, "you cannot deactivate your own account")
	}
	if target.Role == id.RoleSuperAdmin && !access.IsPlatformAdmin(p) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only a superadmin can deactivate a superadmin")
	}

	now := requestcontext.Now(ctx)
	u, err := s.users.Execute(ctx, userID, func(u *models.UserProfile) error {
		if err := u.CanDeactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
		}
		u.ApplyDeactivation(now)
		return nil
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	s.emit(ctx, audit.EventUserDeactivated, u.CompanyID, audit.Subject("user", u.ID), nil)
	return u, nil
}

// ChangePassword replaces the caller's own password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	p, err := access.Principal(ctx)
	if err != nil {
		return err
	}
	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	u, err := s.users.Execute(ctx, p.UserID, func(u *models.UserProfile) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
		}
		u.PasswordHash = hash
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return translate(err, "user")
	}
	s.emit(ctx, audit.EventPasswordChanged, u.CompanyID, audit.Subject("user", u.ID), nil)
	return nil
}

// FindByEmail loads a profile for login. The address is normalized first.
func (s *Service) FindByEmail(ctx context.Context, address string) (*models.UserProfile, error) {
	u, err := s.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// ResolveUser reloads a profile on the authentication path.
func (s *Service) ResolveUser(ctx context.Context, userID id.UserID) (*models.UserProfile, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveResolveUser(time.Now())
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return u, nil
}

// ListRecipients returns the active users of company whose permission level
// is at least min. Notifications use it to address editors and validators.
func (s *Service) ListRecipients(ctx context.Context, companyID id.CompanyID, min id.PermissionLevel) ([]models.Recipient, error) {
	users, err := s.users.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, "user")
	}
	var out []models.Recipient
	for _, u := range users {
		if u.Permission.AtLeast(min) {
			out = append(out, models.Recipient{UserID: u.ID, Email: u.Email, Name: u.Name})
		}
	}
	return out, nil
}

func (s *Service) checkSites(ctx context.Context, companyID id.CompanyID, siteIDs []id.SiteID) error {
	for _, siteID := range siteIDs {
		if _, err := s.ResolveSite(ctx, companyID, siteID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.New(dErrors.CodeValidation, "site "+siteID.String()+" does not belong to the company")
			}
			return err
		}
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < models.MinPasswordLength {
		return "", dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return "", dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return string(hash), nil
}
