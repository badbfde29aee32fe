// Package models defines the Admin aggregate and its role/permission axes.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the coarse access tier of an admin account.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleReviewer   Role = "reviewer"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleReviewer, RoleSuperAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Permission is a named capability held by an admin, independent of role.
// An endpoint may require a role, a permission, or both.
type Permission string

const (
	PermViewRegistrations    Permission = "view_registrations"
	PermEditRegistrations    Permission = "edit_registrations"
	PermApproveRegistrations Permission = "approve_registrations"
	PermManageAdmins         Permission = "manage_admins"
	PermViewReports          Permission = "view_reports"
)

// ParsePermission validates a permission string.
func ParsePermission(s string) (Permission, bool) {
	switch Permission(s) {
	case PermViewRegistrations, PermEditRegistrations, PermApproveRegistrations,
		PermManageAdmins, PermViewReports:
		return Permission(s), true
	default:
		return "", false
	}
}

// Admin is one reviewer/operator account.
//
// Invariants:
//   - Username and Email are unique across all admins
//   - PasswordHash is a bcrypt hash, never the plaintext
//   - Permissions contains only known Permission values, no duplicates
type Admin struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	FullName     string       `json:"fullName"`
	Role         Role         `json:"role"`
	Permissions  []Permission `json:"permissions"`
	IsActive     bool         `json:"isActive"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty"`
	ProfilePic   string       `json:"profilePicture,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HasPermission reports whether the admin holds the capability.
func (a *Admin) HasPermission(p Permission) bool {
	for _, held := range a.Permissions {
		if held == p {
			return true
		}
	}
	return false
}

// Profile is the admin representation returned to clients; it never carries
// the password hash.
type Profile struct {
	ID          uuid.UUID    `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	FullName    string       `json:"fullName"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	IsActive    bool         `json:"isActive"`
	LastLogin   *time.Time   `json:"lastLogin,omitempty"`
}

// ProfileOf projects an Admin onto its client-safe view.
func ProfileOf(a *Admin) Profile {
	return Profile{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FullName:    a.FullName,
		Role:        a.Role,
		Permissions: a.Permissions,
		IsActive:    a.IsActive,
		LastLogin:   a.LastLogin,
	}
}

// NormalizeEmail lowercases and trims an email the way the store indexes it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
