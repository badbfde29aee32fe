// Package authz holds the pure authorization predicates for admin actions.
// Role and permission checks are independent axes; callers decide which the
// enclosing operation demands and fail with Forbidden when denied.
package authz

import (
	"admission/internal/admin/models"
)

// Authorize reports whether the admin is active and holds the capability.
func Authorize(admin *models.Admin, capability models.Permission) bool {
	if admin == nil || !admin.IsActive {
		return false
	}
	return admin.HasPermission(capability)
}

// AuthorizeRole reports whether the admin's role is one of allowedRoles.
func AuthorizeRole(admin *models.Admin, allowedRoles ...models.Role) bool {
	if admin == nil || !admin.IsActive {
		return false
	}
	for _, role := range allowedRoles {
		if admin.Role == role {
			return true
		}
	}
	return false
}
