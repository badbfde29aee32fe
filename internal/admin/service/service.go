// Package service implements admin account operations: authentication,
// profile management and account administration.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"admission/internal/admin/authz"
	"admission/internal/admin/models"
	"admission/internal/admin/store"
	"admission/internal/audit"
	"admission/internal/jwttoken"
	dErrors "admission/pkg/domain-errors"
	"admission/pkg/platform/sentinel"
	"admission/pkg/requestcontext"
	"admission/pkg/secrets"
)

// Auditor records account events.
type Auditor interface {
	Emit(event audit.Event)
}

// Service implements admin authentication and account management.
type Service struct {
	store   store.Store
	tokens  *jwttoken.Service
	auditor Auditor
	logger  *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithAuditor wires the audit publisher.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// New constructs the admin service.
func New(st store.Store, tokens *jwttoken.Service, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: st, tokens: tokens, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// LoginResult carries the issued token and the authenticated profile.
type LoginResult struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"admin"`
}

// Login verifies credentials and issues a JWT. Unknown usernames, wrong
// passwords and deactivated accounts all fail with the same
// Unauthorized error so probing reveals nothing. userAgent is the raw
// client header; the parsed device lands in the audit trail.
func (s *Service) Login(ctx context.Context, username, password, userAgent string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username and password are required")
	}

	admin, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin account")
	}
	if err := secrets.Verify(password, admin.PasswordHash); err != nil {
		return nil, err
	}
	if !admin.IsActive {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Generate(admin.ID, string(admin.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	// Project the profile before stamping LastLogin so the response shows
	// the previous login, not this one.
	profile := models.ProfileOf(admin)

	now := requestcontext.Now(ctx)
	admin.LastLogin = &now
	admin.UpdatedAt = now
	if err := s.store.Update(ctx, admin); err != nil {
		s.logger.Warn("failed to record last login", "username", admin.Username, "error", err)
	}

	device := describeDevice(userAgent)
	s.audit(audit.Event{
		Timestamp: now,
		Actor:     admin.Username,
		Action:    audit.ActionAdminLogin,
		Subject:   admin.Username,
		Detail:    device,
	})
	s.logger.Info("admin logged in",
		"username", admin.Username, "role", admin.Role, "browser", device["browser"], "os", device["os"])
	return &LoginResult{Token: token, Profile: profile}, nil
}

// describeDevice reduces a User-Agent header to the browser and OS names
// worth keeping in the audit trail.
func describeDevice(rawUA string) map[string]string {
	if rawUA == "" {
		return nil
	}
	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	device := map[string]string{
		"browser": browser + " " + version,
		"os":      ua.OS(),
	}
	if ua.Bot() {
		device["bot"] = "true"
	}
	return device
}

// FindByID loads an admin account; the auth middleware uses this to
// resolve token subjects.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	admin, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin account")
	}
	return admin, nil
}

// ProfileUpdate carries the self-service profile fields.
type ProfileUpdate struct {
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePicture"`
}

// UpdateProfile changes the actor's own display fields.
func (s *Service) UpdateProfile(ctx context.Context, actor *models.Admin, update ProfileUpdate) (*models.Admin, error) {
	admin, err := s.store.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin account")
	}
	if name := strings.TrimSpace(update.FullName); name != "" {
		admin.FullName = name
	}
	if update.ProfilePic != "" {
		admin.ProfilePic = update.ProfilePic
	}
	admin.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, admin); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	return admin, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, actor *models.Admin, current, next string) error {
	admin, err := s.store.FindByID(ctx, actor.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin account")
	}
	if err := secrets.Verify(current, admin.PasswordHash); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
	}
	hash, err := secrets.Hash(next)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	admin.PasswordHash = hash
	admin.UpdatedAt = now
	if err := s.store.Update(ctx, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}
	s.audit(audit.Event{
		Timestamp: now,
		Actor:     admin.Username,
		Action:    audit.ActionPasswordChanged,
		Subject:   admin.Username,
	})
	return nil
}

// CreateAdminRequest carries a new account definition.
type CreateAdminRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FullName    string   `json:"fullName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// CreateAdmin provisions a new account. Only super admins may do this.
func (s *Service) CreateAdmin(ctx context.Context, actor *models.Admin, req CreateAdminRequest) (*models.Admin, error) {
	if !authz.AuthorizeRole(actor, models.RoleSuperAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only super admins can manage accounts")
	}

	fields := map[string]string{}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		fields["username"] = "username is required"
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "email is invalid"
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		fields["role"] = "role must be admin, reviewer or super_admin"
	}
	perms := make([]models.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perm, ok := models.ParsePermission(p)
		if !ok {
			fields["permissions"] = "unknown permission " + p
			break
		}
		perms = append(perms, perm)
	}
	if len(fields) > 0 {
		return nil, dErrors.NewValidation("admin account validation failed", fields)
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	admin := &models.Admin{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Permissions:  perms,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email is already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin account")
	}

	s.audit(audit.Event{
		Timestamp: now,
		Actor:     actor.Username,
		Action:    audit.ActionAdminCreated,
		Subject:   admin.Username,
		Detail:    map[string]string{"role": string(role)},
	})
	s.logger.Info("admin account created", "username", admin.Username, "role", role, "created_by", actor.Username)
	return admin, nil
}

// ListAdmins returns every account. Only super admins may list.
func (s *Service) ListAdmins(ctx context.Context, actor *models.Admin) ([]models.Profile, error) {
	if !authz.AuthorizeRole(actor, models.RoleSuperAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only super admins can manage accounts")
	}
	admins, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list admin accounts")
	}
	profiles := make([]models.Profile, len(admins))
	for i, a := range admins {
		profiles[i] = models.ProfileOf(a)
	}
	return profiles, nil
}

// SetActive enables or disables an account. Only super admins; actors
// cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor *models.Admin, id uuid.UUID, active bool) (*models.Admin, error) {
	if !authz.AuthorizeRole(actor, models.RoleSuperAdmin) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only super admins can manage accounts")
	}
	if !active && actor.ID == id {
		return nil, dErrors.New(dErrors.CodeValidation, "you cannot deactivate your own account")
	}
	admin, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "admin account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin account")
	}
	admin.IsActive = active
	admin.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, admin); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update admin account")
	}
	return admin, nil
}

func (s *Service) audit(event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(event)
	}
}
