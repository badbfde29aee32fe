package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adminmodels "admission/internal/admin/models"
	"admission/internal/audit"
	"admission/internal/notify"
	"admission/internal/registration/checklist"
	"admission/internal/registration/models"
	"admission/internal/registration/sequence"
	"admission/internal/registration/store"
	dErrors "admission/pkg/domain-errors"
	"admission/pkg/platform/sentinel"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	reject   bool
}

func (f *fakeNotifier) Enqueue(msg notify.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.messages = append(f.messages, msg)
	return true
}

func (f *fakeNotifier) all() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.messages...)
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeAuditor) Emit(event audit.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAuditor) actions() []audit.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audit.Action, len(f.events))
	for i, e := range f.events {
		out[i] = e.Action
	}
	return out
}

// staleOnceStore forces one ErrStaleVersion on Update to simulate a
// lost race with a concurrent writer.
type staleOnceStore struct {
	store.Store
	mu       sync.Mutex
	remained bool
}

func (s *staleOnceStore) Update(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	fire := !s.remained
	s.remained = true
	s.mu.Unlock()
	if fire {
		return sentinel.ErrStaleVersion
	}
	return s.Store.Update(ctx, reg)
}

type fixture struct {
	svc      *Service
	store    *store.InMemory
	notifier *fakeNotifier
	auditor  *fakeAuditor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st := store.NewInMemory()
	notifier := &fakeNotifier{}
	auditor := &fakeAuditor{}
	blobs := newMemBlobs()
	all := append([]Option{WithNotifier(notifier), WithAuditor(auditor)}, opts...)
	svc := New(st, sequence.NewInMemory(), blobs, slog.New(slog.DiscardHandler), all...)
	return &fixture{svc: svc, store: st, notifier: notifier, auditor: auditor}
}

func validCreateRequest(email string) models.CreateRequest {
	return models.CreateRequest{PersonalData: models.PersonalData{
		FullName:    "Siti Rahma",
		Gender:      models.GenderFemale,
		BirthPlace:  "Bandung",
		BirthDate:   time.Date(2013, 5, 20, 0, 0, 0, 0, time.UTC),
		Address:     models.Address{Street: "Jl. Asia Afrika 1", City: "Bandung"},
		PhoneNumber: "+628123456789",
		Email:       email,
	}}
}

func (f *fixture) readyRegistration(t *testing.T, email string) *models.Registration {
	t.Helper()
	ctx := context.Background()
	reg, err := f.svc.Create(ctx, validCreateRequest(email))
	require.NoError(t, err)

	_, err = f.svc.UpdateParentData(ctx, reg.Number, models.ParentDataRequest{
		ParentData: models.ParentData{Father: models.Parent{Name: "Budi"}, Mother: models.Parent{Name: "Ani"}},
	})
	require.NoError(t, err)
	_, err = f.svc.UpdateAcademicData(ctx, reg.Number, models.AcademicDataRequest{
		AcademicData: models.AcademicData{
			PreviousSchool: models.PreviousSchool{Name: "SDN 1"},
			LastGrade:      "6",
		},
	})
	require.NoError(t, err)
	for _, dt := range checklist.Required {
		_, err = f.svc.RecordDocument(ctx, reg.Number, string(dt), string(dt)+".pdf", strings.NewReader("content"))
		require.NoError(t, err)
	}
	current, err := f.svc.Get(ctx, reg.Number)
	require.NoError(t, err)
	return current
}

func reviewer(perms ...adminmodels.Permission) *adminmodels.Admin {
	return &adminmodels.Admin{
		ID:          uuid.New(),
		Username:    "reviewer1",
		Role:        adminmodels.RoleReviewer,
		Permissions: perms,
		IsActive:    true,
	}
}

func TestCreate_AssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	year := time.Now().Year()
	first, err := f.svc.Create(ctx, validCreateRequest("a@example.com"))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, validCreateRequest("b@example.com"))
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("MTS-%d-0001", year), first.Number)
	assert.Equal(t, fmt.Sprintf("MTS-%d-0002", year), second.Number)
	assert.Equal(t, models.StatusDraft, first.Status)
	assert.Equal(t, []audit.Action{audit.ActionRegistrationCreated, audit.ActionRegistrationCreated}, f.auditor.actions())
}

func TestCreate_ConcurrentRequestsGetUniqueNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg, err := f.svc.Create(ctx, validCreateRequest(fmt.Sprintf("user%d@example.com", i)))
			if err != nil {
				t.Error(err)
				return
			}
			numbers <- reg.Number
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		assert.False(t, seen[number], "number %s assigned twice", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validCreateRequest("siti@example.com"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, validCreateRequest("SITI@example.com"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreate_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	req := validCreateRequest("bad email")
	req.PersonalData.FullName = "  "

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	var dErr *dErrors.DomainError
	require.ErrorAs(t, err, &dErr)
	assert.Contains(t, dErr.Fields, "personalData.fullName")
	assert.Contains(t, dErr.Fields, "personalData.email")
}

func TestSubmit_IncompleteDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	// drop one required document directly in the store
	stored, err := f.store.FindByNumber(ctx, reg.Number)
	require.NoError(t, err)
	delete(stored.Documents, models.DocPhoto)
	require.NoError(t, f.store.Update(ctx, stored))

	_, err = f.svc.Submit(ctx, reg.Number)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIncompleteDocuments))

	var dErr *dErrors.DomainError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, []string{"photo"}, dErr.Missing)

	after, err := f.svc.Get(ctx, reg.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, after.Status)
	assert.Empty(t, f.notifier.all())
}

func TestSubmit_Complete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	submitted, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.Tracking.SubmittedAt)

	msgs := f.notifier.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindConfirmation, msgs[0].Kind)
	assert.Contains(t, f.auditor.actions(), audit.ActionRegistrationSubmitted)

	// resubmission is rejected
	_, err = f.svc.Submit(ctx, reg.Number)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestSubmit_DocumentsOnlyDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Only the four required documents, no parent or academic sections.
	reg, err := f.svc.Create(ctx, validCreateRequest("siti@example.com"))
	require.NoError(t, err)
	for _, dt := range checklist.Required {
		_, err = f.svc.RecordDocument(ctx, reg.Number, string(dt), string(dt)+".pdf", strings.NewReader("content"))
		require.NoError(t, err)
	}

	submitted, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, submitted.Status)
}

func TestSubmit_DroppedNotificationDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.reject = true

	reg := f.readyRegistration(t, "siti@example.com")
	submitted, err := f.svc.Submit(context.Background(), reg.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, submitted.Status)
}

func TestEditAfterSubmitIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	_, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)

	_, err = f.svc.UpdateParentData(ctx, reg.Number, models.ParentDataRequest{
		ParentData: models.ParentData{Father: models.Parent{Name: "X"}, Mother: models.Parent{Name: "Y"}},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = f.svc.BulkUpdate(ctx, reg.Number, models.BulkUpdateRequest{
		AcademicData: &models.AcademicData{PreviousSchool: models.PreviousSchool{Name: "Other"}, LastGrade: "6"},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestRecordDocument_UnknownType(t *testing.T) {
	f := newFixture(t)
	reg := f.readyRegistration(t, "siti@example.com")

	_, err := f.svc.RecordDocument(context.Background(), reg.Number, "transcript", "t.pdf", strings.NewReader("x"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRecordDocument_OverwriteReplacesDescriptor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.readyRegistration(t, "siti@example.com")

	before, err := f.svc.Get(ctx, reg.Number)
	require.NoError(t, err)
	firstRef := before.Documents[models.DocPhoto].StorageRef

	updated, err := f.svc.RecordDocument(ctx, reg.Number, "photo", "better.png", strings.NewReader("new"))
	require.NoError(t, err)
	assert.NotEqual(t, firstRef, updated.Documents[models.DocPhoto].StorageRef)
	assert.Equal(t, "better.png", updated.Documents[models.DocPhoto].OriginalName)
}

func TestDecide_RequiresApprovePermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	_, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)

	viewer := reviewer(adminmodels.PermViewRegistrations)
	_, err = f.svc.Decide(ctx, viewer, reg.ID, models.DecideRequest{Status: "Approved"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	inactive := reviewer(adminmodels.PermApproveRegistrations)
	inactive.IsActive = false
	_, err = f.svc.Decide(ctx, inactive, reg.ID, models.DecideRequest{Status: "Approved"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	after, err := f.svc.Get(ctx, reg.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, after.Status)
}

func TestDecide_AppliesDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	_, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)
	f.notifier.messages = nil

	actor := reviewer(adminmodels.PermApproveRegistrations)
	decided, err := f.svc.Decide(ctx, actor, reg.ID, models.DecideRequest{Status: "Approved", Notes: "all documents verified"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, decided.Status)
	require.NotNil(t, decided.Tracking.ReviewedBy)
	assert.Equal(t, actor.ID, *decided.Tracking.ReviewedBy)
	assert.NotNil(t, decided.Tracking.ReviewedAt)
	assert.Equal(t, "all documents verified", decided.Tracking.Notes)

	msgs := f.notifier.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindStatusUpdate, msgs[0].Kind)
	assert.Equal(t, models.StatusApproved, msgs[0].Registration.Status)
}

func TestDecide_InvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := reviewer(adminmodels.PermApproveRegistrations)

	reg := f.readyRegistration(t, "siti@example.com")

	// still a draft
	_, err := f.svc.Decide(ctx, actor, reg.ID, models.DecideRequest{Status: "Approved"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, actor, reg.ID, models.DecideRequest{Status: "Draft"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.Decide(ctx, actor, reg.ID, models.DecideRequest{Status: "Enrolled"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDecide_UnknownRegistration(t *testing.T) {
	f := newFixture(t)
	actor := reviewer(adminmodels.PermApproveRegistrations)

	_, err := f.svc.Decide(context.Background(), actor, uuid.New(), models.DecideRequest{Status: "Approved"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStaleUpdateSurfacesConflict(t *testing.T) {
	st := store.NewInMemory()
	svc := New(&staleOnceStore{Store: st}, sequence.NewInMemory(), newMemBlobs(), slog.New(slog.DiscardHandler))
	ctx := context.Background()

	reg, err := svc.Create(ctx, validCreateRequest("siti@example.com"))
	require.NoError(t, err)

	_, err = svc.UpdateParentData(ctx, reg.Number, models.ParentDataRequest{
		ParentData: models.ParentData{Father: models.Parent{Name: "Budi"}, Mother: models.Parent{Name: "Ani"}},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestGetDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.readyRegistration(t, "a@example.com")
	reg := f.readyRegistration(t, "b@example.com")
	_, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)

	dash, err := f.svc.GetDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Total)
	assert.Equal(t, 1, dash.ByStatus[models.StatusDraft])
	assert.Equal(t, 1, dash.ByStatus[models.StatusSubmitted])
	assert.Equal(t, 1, dash.Incomplete)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.readyRegistration(t, "siti@example.com")
	_, err := f.svc.Submit(ctx, reg.Number)
	require.NoError(t, err)
	draft, err := f.svc.Create(ctx, validCreateRequest("draft@example.com"))
	require.NoError(t, err)

	rows, err := f.svc.Export(ctx, store.Filter{SortBy: store.SortNumber, SortAsc: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, reg.Number, rows[0].RegistrationNumber)
	assert.True(t, rows[0].DocumentsComplete)
	assert.NotEmpty(t, rows[0].SubmittedAt)
	assert.Equal(t, draft.Number, rows[1].RegistrationNumber)
	assert.False(t, rows[1].DocumentsComplete)
	assert.Empty(t, rows[1].SubmittedAt)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.svc.Create(ctx, validCreateRequest("stale@example.com"))
	require.NoError(t, err)
	// age the draft past the cutoff
	record, err := f.store.FindByNumber(ctx, stale.Number)
	require.NoError(t, err)
	record.Tracking.LastUpdated = time.Now().Add(-96 * time.Hour)
	require.NoError(t, f.store.Update(ctx, record))

	_, err = f.svc.Create(ctx, validCreateRequest("fresh@example.com"))
	require.NoError(t, err)

	queued, err := f.svc.SendReminders(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	msgs := f.notifier.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindReminder, msgs[0].Kind)
	assert.Equal(t, stale.Number, msgs[0].Registration.Number)
}
