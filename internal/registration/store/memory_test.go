package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"admission/internal/registration/models"
	"admission/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *InMemorySuite) newRegistration(seq int, created time.Time) *models.Registration {
	reg := models.New(uuid.New(), fmt.Sprintf("MTS-2026-%04d", seq), models.PersonalData{
		FullName: fmt.Sprintf("Student %04d", seq),
		Email:    fmt.Sprintf("student%d@example.com", seq),
	}, created)
	reg.CreatedAt = created
	return reg
}

func (s *InMemorySuite) TestCreateAndFind() {
	reg := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, reg))
	s.Equal(int64(1), reg.Version)

	byID, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.Number, byID.Number)

	byNumber, err := s.store.FindByNumber(s.ctx, reg.Number)
	s.Require().NoError(err)
	s.Equal(reg.ID, byNumber.ID)

	byEmail, err := s.store.FindByEmail(s.ctx, "STUDENT1@example.com")
	s.Require().NoError(err)
	s.Equal(reg.ID, byEmail.ID)
}

func (s *InMemorySuite) TestFindUnknown() {
	_, err := s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByNumber(s.ctx, "MTS-2026-9999")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestCreateDuplicateEmail() {
	first := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, first))

	dup := s.newRegistration(2, time.Now())
	dup.PersonalData.Email = "Student1@Example.com"
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestCreateDuplicateNumber() {
	first := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, first))

	dup := s.newRegistration(2, time.Now())
	dup.Number = first.Number
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestUpdateIncrementsVersion() {
	reg := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, reg))

	reg.PersonalData.NickName = "Sis"
	s.Require().NoError(s.store.Update(s.ctx, reg))
	s.Equal(int64(2), reg.Version)

	stored, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal("Sis", stored.PersonalData.NickName)
	s.Equal(int64(2), stored.Version)
}

func (s *InMemorySuite) TestUpdateStaleVersion() {
	reg := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, reg))

	first, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	second, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)

	first.Tracking.Notes = "reviewer one"
	s.Require().NoError(s.store.Update(s.ctx, first))

	second.Tracking.Notes = "reviewer two"
	s.ErrorIs(s.store.Update(s.ctx, second), sentinel.ErrStaleVersion)

	stored, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal("reviewer one", stored.Tracking.Notes)
}

func (s *InMemorySuite) TestUpdateUnknown() {
	reg := s.newRegistration(1, time.Now())
	reg.Version = 1
	s.ErrorIs(s.store.Update(s.ctx, reg), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestStoredStateIsIsolated() {
	reg := s.newRegistration(1, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, reg))

	got, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	got.Documents[models.DocPhoto] = &models.Document{Filename: "photo.png"}
	got.PersonalData.FullName = "Mutated"

	again, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Empty(again.Documents)
	s.Equal("Student 0001", again.PersonalData.FullName)
}

func (s *InMemorySuite) TestListFilterSearchAndPaging() {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		reg := s.newRegistration(i, base.Add(time.Duration(i)*time.Hour))
		if i > 3 {
			reg.Status = models.StatusSubmitted
		}
		s.Require().NoError(s.store.Create(s.ctx, reg))
	}

	submitted := models.StatusSubmitted
	regs, total, err := s.store.List(s.ctx, Filter{Status: &submitted})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(regs, 2)

	regs, total, err = s.store.List(s.ctx, Filter{Search: "student3@"})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("MTS-2026-0003", regs[0].Number)

	// newest first by default
	regs, total, err = s.store.List(s.ctx, Filter{Page: 1, PageSize: 2})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(regs, 2)
	s.Equal("MTS-2026-0005", regs[0].Number)

	regs, _, err = s.store.List(s.ctx, Filter{Page: 3, PageSize: 2})
	s.Require().NoError(err)
	s.Len(regs, 1)

	regs, _, err = s.store.List(s.ctx, Filter{SortBy: SortNumber, SortAsc: true, PageSize: 1})
	s.Require().NoError(err)
	s.Equal("MTS-2026-0001", regs[0].Number)
}

func (s *InMemorySuite) TestCountByStatus() {
	now := time.Now()
	for i := 1; i <= 3; i++ {
		s.Require().NoError(s.store.Create(s.ctx, s.newRegistration(i, now)))
	}
	reg := s.newRegistration(4, now)
	reg.Status = models.StatusApproved
	s.Require().NoError(s.store.Create(s.ctx, reg))

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, counts[models.StatusDraft])
	s.Equal(1, counts[models.StatusApproved])
}

func (s *InMemorySuite) TestListStaleDrafts() {
	now := time.Now()
	old := s.newRegistration(1, now.Add(-96*time.Hour))
	fresh := s.newRegistration(2, now.Add(-time.Hour))
	submittedOld := s.newRegistration(3, now.Add(-96*time.Hour))
	submittedOld.Status = models.StatusSubmitted
	for _, reg := range []*models.Registration{old, fresh, submittedOld} {
		s.Require().NoError(s.store.Create(s.ctx, reg))
	}

	stale, err := s.store.ListStaleDrafts(s.ctx, now.Add(-72*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal(old.Number, stale[0].Number)
}
