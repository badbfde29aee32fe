// Package store persists registration records.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"admission/internal/registration/models"
)

// Sort keys accepted by List.
const (
	SortCreatedAt = "createdAt"
	SortFullName  = "fullName"
	SortNumber    = "registrationNumber"
	SortStatus    = "status"
)

// Filter narrows and pages a listing. Zero value lists everything,
// newest first.
type Filter struct {
	Status   *models.Status
	Search   string // matches number, full name or email, case-insensitive
	SortBy   string // one of the Sort constants; default SortCreatedAt
	SortAsc  bool   // default descending
	Page     int    // 1-based; default 1
	PageSize int    // default 20, capped at 100
}

func (f Filter) normalized() Filter {
	if f.SortBy == "" {
		f.SortBy = SortCreatedAt
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// Store is the persistence contract for registrations.
//
// Create fails with sentinel.ErrConflict when the registration number or
// applicant email is already taken. Update checks the record's Version
// against the stored one and fails with sentinel.ErrStaleVersion on
// mismatch; on success the stored version is incremented. Lookups return
// sentinel.ErrNotFound for unknown records.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	FindByNumber(ctx context.Context, number string) (*models.Registration, error)
	FindByEmail(ctx context.Context, email string) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
	List(ctx context.Context, filter Filter) ([]*models.Registration, int, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	ListStaleDrafts(ctx context.Context, cutoff time.Time) ([]*models.Registration, error)
}
