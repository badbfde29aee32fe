package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"admission/internal/registration/models"
	"admission/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded store for tests and single-node setups.
// Records are deep-copied on the way in and out so callers never alias
// stored state.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.Registration
	byNumber map[string]uuid.UUID
	byEmail  map[string]uuid.UUID
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[uuid.UUID]*models.Registration),
		byNumber: make(map[string]uuid.UUID),
		byEmail:  make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[reg.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNumber[reg.Number]; exists {
		return sentinel.ErrConflict
	}
	email := emailKey(reg.PersonalData.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}

	stored := reg.Clone()
	stored.Version = 1
	s.byID[stored.ID] = stored
	s.byNumber[stored.Number] = stored.ID
	s.byEmail[email] = stored.ID
	reg.Version = stored.Version
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemory) Update(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[reg.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != reg.Version {
		return sentinel.ErrStaleVersion
	}

	next := reg.Clone()
	next.Version = stored.Version + 1
	next.Number = stored.Number // immutable once allocated
	s.byID[reg.ID] = next
	reg.Version = next.Version
	return nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.Registration, int, error) {
	filter = filter.normalized()

	s.mu.RLock()
	matched := make([]*models.Registration, 0, len(s.byID))
	for _, reg := range s.byID {
		if matches(reg, filter) {
			matched = append(matched, reg.Clone())
		}
	}
	s.mu.RUnlock()

	sortRegistrations(matched, filter)

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*models.Registration{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Status]int)
	for _, reg := range s.byID {
		counts[reg.Status]++
	}
	return counts, nil
}

func (s *InMemory) ListStaleDrafts(_ context.Context, cutoff time.Time) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*models.Registration
	for _, reg := range s.byID {
		if reg.Status == models.StatusDraft && reg.Tracking.LastUpdated.Before(cutoff) {
			stale = append(stale, reg.Clone())
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].Tracking.LastUpdated.Before(stale[j].Tracking.LastUpdated)
	})
	return stale, nil
}

func matches(reg *models.Registration, filter Filter) bool {
	if filter.Status != nil && reg.Status != *filter.Status {
		return false
	}
	if filter.Search == "" {
		return true
	}
	needle := strings.ToLower(filter.Search)
	return strings.Contains(strings.ToLower(reg.Number), needle) ||
		strings.Contains(strings.ToLower(reg.PersonalData.FullName), needle) ||
		strings.Contains(strings.ToLower(reg.PersonalData.Email), needle)
}

func sortRegistrations(regs []*models.Registration, filter Filter) {
	less := func(a, b *models.Registration) bool {
		switch filter.SortBy {
		case SortFullName:
			return a.PersonalData.FullName < b.PersonalData.FullName
		case SortNumber:
			return a.Number < b.Number
		case SortStatus:
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(regs, func(i, j int) bool {
		if filter.SortAsc {
			return less(regs[i], regs[j])
		}
		return less(regs[j], regs[i])
	})
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
