// Package store persists admin accounts.
package store

import (
	"context"

	"github.com/google/uuid"

	"admission/internal/admin/models"
)

// Store is the persistence contract for admin accounts. Create fails
// with sentinel.ErrConflict when the username or email is taken;
// lookups return sentinel.ErrNotFound for unknown accounts.
type Store interface {
	Create(ctx context.Context, admin *models.Admin) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
	Update(ctx context.Context, admin *models.Admin) error
	List(ctx context.Context) ([]*models.Admin, error)
}
