package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"admission/internal/admin/models"
	"admission/pkg/platform/sentinel"
	"admission/pkg/secrets"
)

// Seed creates a bootstrap super admin account. Safe to call on every
// start; an existing account with the same username is left untouched.
func Seed(ctx context.Context, st Store, username, password string, log *slog.Logger) error {
	hash, err := secrets.Hash(password)
	if err != nil {
		return err
	}
	now := time.Now()
	admin := &models.Admin{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@admission.local",
		PasswordHash: hash,
		FullName:     "Super Admin",
		Role:         models.RoleSuperAdmin,
		Permissions: []models.Permission{
			models.PermViewRegistrations,
			models.PermEditRegistrations,
			models.PermApproveRegistrations,
			models.PermManageAdmins,
			models.PermViewReports,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.Create(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil
		}
		return err
	}
	log.Info("seeded super admin account", "username", username)
	return nil
}
