package domain

import (
	"strings"

	dErrors "rcaflow/pkg/domain-errors"
)

// Role is the administrative role of a user profile.
type Role string

const (
	// RoleSuperAdmin operates the platform across every company.
	RoleSuperAdmin Role = "superadmin"
	// RoleAdmin manages sites and users of a single company.
	RoleAdmin Role = "admin"
	// RoleUser takes part in investigations according to their permission level.
	RoleUser Role = "user"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
}

// PermissionLevel controls what a user may do inside the RCA workflow.
// Levels are ordered: viewer < editor < validator.
type PermissionLevel string

const (
	PermissionViewer    PermissionLevel = "viewer"
	PermissionEditor    PermissionLevel = "editor"
	PermissionValidator PermissionLevel = "validator"
)

var permissionRank = map[PermissionLevel]int{
	PermissionViewer:    1,
	PermissionEditor:    2,
	PermissionValidator: 3,
}

func ParsePermissionLevel(s string) (PermissionLevel, error) {
	p := PermissionLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := permissionRank[p]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid permission level")
	}
	return p, nil
}

// AtLeast reports whether p grants everything min grants.
func (p PermissionLevel) AtLeast(min PermissionLevel) bool {
	return permissionRank[p] >= permissionRank[min] && permissionRank[p] > 0
}
