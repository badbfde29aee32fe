package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"admission/internal/admin/models"
	"admission/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded admin store for tests and single-node
// setups.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*models.Admin
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
}

// NewInMemory constructs an empty in-memory admin store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[uuid.UUID]*models.Admin),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(admin.Username)
	email := models.NormalizeEmail(admin.Email)
	if _, exists := s.byUsername[username]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}

	stored := cloneAdmin(admin)
	s.byID[stored.ID] = stored
	s.byUsername[username] = stored.ID
	s.byEmail[email] = stored.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdmin(stored), nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdmin(s.byID[id]), nil
}

func (s *InMemory) Update(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[admin.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// username and email are immutable identifiers in this store
	next := cloneAdmin(admin)
	next.Username = stored.Username
	next.Email = stored.Email
	s.byID[admin.ID] = next
	return nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admins := make([]*models.Admin, 0, len(s.byID))
	for _, a := range s.byID {
		admins = append(admins, cloneAdmin(a))
	}
	sort.Slice(admins, func(i, j int) bool {
		return admins[i].Username < admins[j].Username
	})
	return admins, nil
}

func cloneAdmin(a *models.Admin) *models.Admin {
	dup := *a
	dup.Permissions = append([]models.Permission(nil), a.Permissions...)
	if a.LastLogin != nil {
		t := *a.LastLogin
		dup.LastLogin = &t
	}
	return &dup
}
