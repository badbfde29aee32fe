// Package service orchestrates the registration lifecycle: intake,
// document uploads, submission and administrator decisions.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"admission/internal/admin/authz"
	adminmodels "admission/internal/admin/models"
	"admission/internal/audit"
	"admission/internal/blob"
	"admission/internal/notify"
	"admission/internal/platform/metrics"
	"admission/internal/registration/checklist"
	"admission/internal/registration/models"
	"admission/internal/registration/sequence"
	"admission/internal/registration/store"
	"admission/internal/registration/workflow"
	dErrors "admission/pkg/domain-errors"
	"admission/pkg/platform/sentinel"
	"admission/pkg/requestcontext"
)

// Notifier enqueues applicant notifications. Delivery is best effort;
// the boolean result is advisory and never fails an operation.
type Notifier interface {
	Enqueue(msg notify.Message) bool
}

// Auditor records lifecycle events.
type Auditor interface {
	Emit(event audit.Event)
}

// Service implements the registration workflow on top of the store,
// sequence allocator and blob store.
type Service struct {
	store     store.Store
	allocator sequence.Allocator
	blobs     blob.Store
	rules     *workflow.Rules

	notifier Notifier
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

// WithNotifier wires the notification dispatcher.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAuditor wires the audit publisher.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMetrics wires Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRules overrides the default decision-transition graph.
func WithRules(rules *workflow.Rules) Option {
	return func(s *Service) { s.rules = rules }
}

// New constructs the registration service.
func New(st store.Store, allocator sequence.Allocator, blobs blob.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     st,
		allocator: allocator,
		blobs:     blobs,
		rules:     workflow.DefaultRules(),
		logger:    logger,
		tracer:    otel.Tracer("admission/registration"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create starts a new Draft registration from personal data. The
// registration number is allocated before the record is constructed, so
// a storage failure can leave a gap in the sequence but never a record
// without a number.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Create")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.FindByEmail(ctx, req.PersonalData.Email); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "a registration with this email already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing registrations")
	}

	now := requestcontext.Now(ctx)
	year := now.Year()
	seq, err := s.allocator.Next(ctx, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate registration number")
	}
	number := sequence.Format(year, seq)
	span.SetAttributes(attribute.String("registration.number", number))

	reg := models.New(uuid.New(), number, req.PersonalData, now)
	if err := s.store.Create(ctx, reg); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a registration with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store registration")
	}

	if s.metrics != nil {
		s.metrics.RegistrationsCreated.Inc()
	}
	s.audit(audit.Event{
		Timestamp: now,
		Action:    audit.ActionRegistrationCreated,
		Subject:   reg.Number,
	})
	s.logger.Info("registration created", "registration_number", reg.Number)
	return reg, nil
}

// Get returns a registration by its public number.
func (s *Service) Get(ctx context.Context, number string) (*models.Registration, error) {
	reg, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return reg, nil
}

// GetByID returns a registration by its internal ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return reg, nil
}

// UpdateParentData replaces step two while the registration is a Draft.
func (s *Service) UpdateParentData(ctx context.Context, number string, req models.ParentDataRequest) (*models.Registration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.editDraft(ctx, number, func(reg *models.Registration) {
		pd := req.ParentData
		reg.ParentData = &pd
	})
}

// UpdateAcademicData replaces step three while the registration is a Draft.
func (s *Service) UpdateAcademicData(ctx context.Context, number string, req models.AcademicDataRequest) (*models.Registration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.editDraft(ctx, number, func(reg *models.Registration) {
		ad := req.AcademicData
		reg.AcademicData = &ad
	})
}

// BulkUpdate replaces any provided sections in one shot, Draft only.
func (s *Service) BulkUpdate(ctx context.Context, number string, req models.BulkUpdateRequest) (*models.Registration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.editDraft(ctx, number, func(reg *models.Registration) {
		if req.PersonalData != nil {
			reg.PersonalData = *req.PersonalData
		}
		if req.ParentData != nil {
			pd := *req.ParentData
			reg.ParentData = &pd
		}
		if req.AcademicData != nil {
			ad := *req.AcademicData
			reg.AcademicData = &ad
		}
	})
}

func (s *Service) editDraft(ctx context.Context, number string, apply func(*models.Registration)) (*models.Registration, error) {
	reg, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if err := workflow.EnsureDraft(reg); err != nil {
		return nil, err
	}
	apply(reg)
	reg.Tracking.LastUpdated = requestcontext.Now(ctx)
	if err := s.persist(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// RecordDocument stores an uploaded file and attaches its descriptor,
// replacing any earlier upload of the same type.
func (s *Service) RecordDocument(ctx context.Context, number, docType, originalName string, content io.Reader) (*models.Registration, error) {
	dt, ok := models.ParseDocumentType(docType)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown document type %q", docType))
	}

	reg, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err)
	}

	ref, err := s.blobs.Put(ctx, reg.Number, string(dt), originalName, content)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	var previous string
	if old := reg.Documents[dt]; old != nil {
		previous = old.StorageRef
	}

	now := requestcontext.Now(ctx)
	reg.Documents[dt] = &models.Document{
		Filename:     ref,
		OriginalName: originalName,
		StorageRef:   ref,
		UploadedAt:   now,
	}
	reg.Tracking.LastUpdated = now
	if err := s.persist(ctx, reg); err != nil {
		if rmErr := s.blobs.Remove(ctx, ref); rmErr != nil {
			s.logger.Warn("orphaned document blob", "ref", ref, "error", rmErr)
		}
		return nil, err
	}
	if previous != "" && previous != ref {
		if err := s.blobs.Remove(ctx, previous); err != nil {
			s.logger.Warn("stale document blob not removed", "ref", previous, "error", err)
		}
	}
	return reg, nil
}

// Submit moves a complete Draft to Submitted and queues the
// confirmation notification.
func (s *Service) Submit(ctx context.Context, number string) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Submit")
	defer span.End()

	reg, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if err := workflow.Submit(reg); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	reg.Status = models.StatusSubmitted
	reg.Tracking.SubmittedAt = &now
	reg.Tracking.LastUpdated = now
	if err := s.persist(ctx, reg); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RegistrationsSubmitted.Inc()
	}
	s.audit(audit.Event{
		Timestamp: now,
		Action:    audit.ActionRegistrationSubmitted,
		Subject:   reg.Number,
	})
	s.notify(notify.Message{Kind: notify.KindConfirmation, Registration: reg.Clone()})
	s.logger.Info("registration submitted", "registration_number", reg.Number)
	return reg, nil
}

// Decide applies an administrator decision. The actor must be active
// and hold the approve capability; the target status must be reachable
// from the current one.
func (s *Service) Decide(ctx context.Context, actor *adminmodels.Admin, id uuid.UUID, req models.DecideRequest) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Decide")
	defer span.End()

	if !authz.Authorize(actor, adminmodels.PermApproveRegistrations) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you are not allowed to decide on registrations")
	}

	req.Normalize()
	target, ok := models.ParseStatus(req.Status)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if err := s.rules.Decide(reg.Status, target); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	reg.Status = target
	reg.Tracking.ReviewedAt = &now
	reg.Tracking.ReviewedBy = &actor.ID
	reg.Tracking.LastUpdated = now
	if req.Notes != "" {
		reg.Tracking.Notes = req.Notes
	}
	if err := s.persist(ctx, reg); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(string(target)).Inc()
	}
	s.audit(audit.Event{
		Timestamp: now,
		Actor:     actor.Username,
		Action:    audit.ActionDecisionApplied,
		Subject:   reg.Number,
		Detail:    map[string]string{"status": string(target)},
	})
	s.notify(notify.Message{Kind: notify.KindStatusUpdate, Registration: reg.Clone(), Notes: req.Notes})
	s.logger.Info("decision applied",
		"registration_number", reg.Number, "status", target, "reviewed_by", actor.Username)
	return reg, nil
}

// List returns a filtered page of registrations plus the total match count.
func (s *Service) List(ctx context.Context, filter store.Filter) ([]*models.Registration, int, error) {
	regs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, total, nil
}

// Dashboard summarizes the registration pipeline.
type Dashboard struct {
	Total      int                   `json:"total"`
	ByStatus   map[models.Status]int `json:"byStatus"`
	Incomplete int                   `json:"incompleteDrafts"`
}

// GetDashboard computes pipeline counts for the admin overview.
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute dashboard")
	}
	d := &Dashboard{ByStatus: make(map[models.Status]int)}
	for status, n := range counts {
		d.ByStatus[status] = n
		d.Total += n
	}
	d.Incomplete = counts[models.StatusDraft]
	return d, nil
}

// ExportRow is one flattened registration for report downloads.
type ExportRow struct {
	RegistrationNumber string `json:"registrationNumber"`
	FullName           string `json:"fullName"`
	Email              string `json:"email"`
	PhoneNumber        string `json:"phoneNumber"`
	Status             string `json:"status"`
	SubmittedAt        string `json:"submittedAt,omitempty"`
	DocumentsComplete  bool   `json:"documentsComplete"`
	CreatedAt          string `json:"createdAt"`
}

// Export flattens every matching registration for download. Pagination
// is bypassed; exports always cover the full filtered set.
func (s *Service) Export(ctx context.Context, filter store.Filter) ([]ExportRow, error) {
	filter.Page = 1
	filter.PageSize = 100

	var rows []ExportRow
	for {
		regs, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export registrations")
		}
		for _, reg := range regs {
			row := ExportRow{
				RegistrationNumber: reg.Number,
				FullName:           reg.PersonalData.FullName,
				Email:              reg.PersonalData.Email,
				PhoneNumber:        reg.PersonalData.PhoneNumber,
				Status:             string(reg.Status),
				DocumentsComplete:  checklist.IsComplete(reg.Documents),
				CreatedAt:          reg.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if reg.Tracking.SubmittedAt != nil {
				row.SubmittedAt = reg.Tracking.SubmittedAt.Format("2006-01-02 15:04:05")
			}
			rows = append(rows, row)
		}
		if len(rows) >= total || len(regs) == 0 {
			return rows, nil
		}
		filter.Page++
	}
}

// SendReminders queues a reminder for every Draft untouched for longer
// than maxAge and returns how many were queued.
func (s *Service) SendReminders(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-maxAge)
	stale, err := s.store.ListStaleDrafts(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find stale drafts")
	}

	var queued int
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	results := make(chan bool, len(stale))
	for _, reg := range stale {
		g.Go(func() error {
			results <- s.notify(notify.Message{Kind: notify.KindReminder, Registration: reg})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(results)
	for ok := range results {
		if ok {
			queued++
		}
	}

	s.audit(audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    audit.ActionRemindersSent,
		Subject:   fmt.Sprintf("%d drafts", queued),
	})
	s.logger.Info("reminders queued", "stale_drafts", len(stale), "queued", queued)
	return queued, nil
}

// persist runs a version-checked update, translating storage sentinels
// into domain errors.
func (s *Service) persist(ctx context.Context, reg *models.Registration) error {
	err := s.store.Update(ctx, reg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrStaleVersion):
		if s.metrics != nil {
			s.metrics.StaleUpdateConflicts.Inc()
		}
		return dErrors.New(dErrors.CodeConflict, "the registration was modified concurrently, please retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "a registration with this email already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registration")
	}
}

func (s *Service) notify(msg notify.Message) bool {
	if s.notifier == nil {
		return false
	}
	return s.notifier.Enqueue(msg)
}

func (s *Service) audit(event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(event)
	}
}

func mapLookupError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
}
