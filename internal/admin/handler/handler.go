// Package handler exposes the authenticated admin and auth endpoints.
package handler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"admission/internal/admin/authz"
	adminmodels "admission/internal/admin/models"
	adminservice "admission/internal/admin/service"
	"admission/internal/audit"
	"admission/internal/platform/middleware"
	regmodels "admission/internal/registration/models"
	regservice "admission/internal/registration/service"
	regstore "admission/internal/registration/store"
	dErrors "admission/pkg/domain-errors"
	"admission/pkg/platform/httputil"
)

// AuditLog reads back recent audit entries for the dashboard.
type AuditLog interface {
	Recent(n int) []audit.Event
}

// Handler wires the admin review surface and auth endpoints.
type Handler struct {
	admins        *adminservice.Service
	registrations *regservice.Service
	auditLog      AuditLog
	authenticate  func(http.Handler) http.Handler
	reminderAge   time.Duration
	logger        *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Handler)

// WithAuditLog exposes recent audit events on the dashboard.
func WithAuditLog(log AuditLog) Option {
	return func(h *Handler) { h.auditLog = log }
}

// WithReminderAge sets how long a Draft may sit untouched before a bulk
// reminder picks it up, when the request does not say otherwise.
func WithReminderAge(age time.Duration) Option {
	return func(h *Handler) {
		if age > 0 {
			h.reminderAge = age
		}
	}
}

// New constructs the admin handler. The authenticate middleware guards
// every route except login.
func New(admins *adminservice.Service, registrations *regservice.Service, authenticate func(http.Handler) http.Handler, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		admins:        admins,
		registrations: registrations,
		authenticate:  authenticate,
		reminderAge:   72 * time.Hour,
		logger:        logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the auth and admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/verify", h.HandleVerify)
			r.Get("/profile", h.HandleGetProfile)
			r.Put("/profile", h.HandleUpdateProfile)
			r.Post("/change-password", h.HandleChangePassword)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/dashboard", h.HandleDashboard)
		r.Get("/registrations", h.HandleListRegistrations)
		r.Get("/registrations/{id}", h.HandleGetRegistration)
		r.Put("/registrations/{id}/status", h.HandleDecide)
		r.Get("/export/registrations", h.HandleExport)
		r.Post("/send-reminders", h.HandleSendReminders)
		r.Get("/admins", h.HandleListAdmins)
		r.Post("/admins", h.HandleCreateAdmin)
		r.Put("/admins/{id}/active", h.HandleSetActive)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[loginRequest](w, r)
	if !ok {
		return
	}
	result, err := h.admins.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleVerify handles GET /auth/verify. Reaching it at all means the
// token passed the middleware; it just echoes the resolved identity.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetAdmin(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"admin": adminProfile(admin),
	})
}

// HandleGetProfile handles GET /auth/profile.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetAdmin(r.Context())
	httputil.WriteJSON(w, http.StatusOK, adminProfile(admin))
}

// HandleUpdateProfile handles PUT /auth/profile.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[adminservice.ProfileUpdate](w, r)
	if !ok {
		return
	}
	admin := middleware.GetAdmin(r.Context())
	updated, err := h.admins.UpdateProfile(r.Context(), admin, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adminProfile(updated))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword handles POST /auth/change-password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[changePasswordRequest](w, r)
	if !ok {
		return
	}
	admin := middleware.GetAdmin(r.Context())
	if err := h.admins.ChangePassword(r.Context(), admin, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// requireView gates the read surface on the view capability. Roles do
// not substitute for it; a super admin without the capability is denied.
func requireView(w http.ResponseWriter, r *http.Request) bool {
	if !authz.Authorize(middleware.GetAdmin(r.Context()), adminmodels.PermViewRegistrations) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "you are not allowed to view registrations"))
		return false
	}
	return true
}

// HandleDashboard handles GET /admin/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if !requireView(w, r) {
		return
	}
	dashboard, err := h.registrations.GetDashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	response := map[string]any{"registrations": dashboard}
	if h.auditLog != nil {
		response["recentActivity"] = h.auditLog.Recent(20)
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

type listResponse struct {
	Registrations []*regmodels.Registration `json:"registrations"`
	Total         int                       `json:"total"`
	Page          int                       `json:"page"`
	PageSize      int                       `json:"pageSize"`
}

// HandleListRegistrations handles GET /admin/registrations.
func (h *Handler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	if !requireView(w, r) {
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	regs, total, err := h.registrations.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if regs == nil {
		regs = []*regmodels.Registration{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Registrations: regs,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	})
}

// HandleGetRegistration handles GET /admin/registrations/{id}.
func (h *Handler) HandleGetRegistration(w http.ResponseWriter, r *http.Request) {
	if !requireView(w, r) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "registration id must be a UUID"))
		return
	}
	reg, err := h.registrations.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleDecide handles PUT /admin/registrations/{id}/status.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "registration id must be a UUID"))
		return
	}
	req, ok := httputil.DecodeJSON[regmodels.DecideRequest](w, r)
	if !ok {
		return
	}
	admin := middleware.GetAdmin(r.Context())
	reg, err := h.registrations.Decide(r.Context(), admin, id, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

var exportHeader = []string{
	"Registration Number", "Full Name", "Email", "Phone", "Status",
	"Submitted At", "Documents Complete", "Created At",
}

// HandleExport handles GET /admin/export/registrations. The format query
// selects csv (default) or json.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if !requireView(w, r) {
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.registrations.Export(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		if rows == nil {
			rows = []regservice.ExportRow{}
		}
		httputil.WriteJSON(w, http.StatusOK, rows)
		return
	}

	filename := "registrations-" + time.Now().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, row := range rows {
		_ = cw.Write([]string{
			row.RegistrationNumber, row.FullName, row.Email, row.PhoneNumber,
			row.Status, row.SubmittedAt, strconv.FormatBool(row.DocumentsComplete),
			row.CreatedAt,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("csv export truncated", "error", err)
	}
}

type sendRemindersRequest struct {
	MaxAgeDays int `json:"maxAgeDays"`
}

// HandleSendReminders handles POST /admin/send-reminders. Reviewers
// cannot trigger bulk sends regardless of their capabilities.
func (h *Handler) HandleSendReminders(w http.ResponseWriter, r *http.Request) {
	if !authz.AuthorizeRole(middleware.GetAdmin(r.Context()), adminmodels.RoleAdmin, adminmodels.RoleSuperAdmin) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "you are not allowed to send reminders"))
		return
	}
	req, ok := httputil.DecodeJSON[sendRemindersRequest](w, r)
	if !ok {
		return
	}
	maxAge := h.reminderAge
	if req.MaxAgeDays > 0 {
		maxAge = time.Duration(req.MaxAgeDays) * 24 * time.Hour
	}
	queued, err := h.registrations.SendReminders(r.Context(), maxAge)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"queued": queued})
}

// HandleListAdmins handles GET /admin/admins.
func (h *Handler) HandleListAdmins(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetAdmin(r.Context())
	profiles, err := h.admins.ListAdmins(r.Context(), admin)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"admins": profiles})
}

// HandleCreateAdmin handles POST /admin/admins.
func (h *Handler) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[adminservice.CreateAdminRequest](w, r)
	if !ok {
		return
	}
	admin := middleware.GetAdmin(r.Context())
	created, err := h.admins.CreateAdmin(r.Context(), admin, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, adminProfile(created))
}

type setActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// HandleSetActive handles PUT /admin/admins/{id}/active.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "admin id must be a UUID"))
		return
	}
	req, ok := httputil.DecodeJSON[setActiveRequest](w, r)
	if !ok {
		return
	}
	admin := middleware.GetAdmin(r.Context())
	updated, err := h.admins.SetActive(r.Context(), admin, id, req.IsActive)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adminProfile(updated))
}

func adminProfile(a *adminmodels.Admin) adminmodels.Profile {
	return adminmodels.ProfileOf(a)
}

func filterFromQuery(r *http.Request) (regstore.Filter, error) {
	q := r.URL.Query()
	filter := regstore.Filter{
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sortBy"),
		SortAsc: q.Get("sortOrder") == "asc",
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := regmodels.ParseStatus(raw)
		if !ok {
			return filter, dErrors.New(dErrors.CodeBadRequest, "unknown status filter "+strconv.Quote(raw))
		}
		filter.Status = &status
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "pageSize must be a positive integer")
		}
		filter.PageSize = size
	}
	return filter, nil
}
