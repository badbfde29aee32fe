// Package handler exposes the applicant-facing registration endpoints.
package handler

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"admission/internal/platform/config"
	"admission/internal/registration/models"
	"admission/internal/registration/service"
	dErrors "admission/pkg/domain-errors"
	"admission/pkg/platform/httputil"
)

// Handler wires public registration endpoints to the service.
type Handler struct {
	service *service.Service
	upload  config.Upload
	logger  *slog.Logger
}

// New constructs the public registration handler.
func New(svc *service.Service, upload config.Upload, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, upload: upload, logger: logger}
}

// Register mounts the applicant routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registration", func(r chi.Router) {
		r.Post("/personal-data", h.HandleCreate)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleBulkUpdate)
			r.Put("/parent-data", h.HandleParentData)
			r.Put("/academic-data", h.HandleAcademicData)
			r.Post("/documents", h.HandleDocuments)
			r.Post("/submit", h.HandleSubmit)
		})
	})
}

type createResponse struct {
	ID                 string `json:"id"`
	RegistrationNumber string `json:"registrationNumber"`
	TrackingCode       string `json:"trackingCode"`
	Status             string `json:"status"`
}

// HandleCreate handles POST /registration/personal-data.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[models.CreateRequest](w, r)
	if !ok {
		return
	}
	reg, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		ID:                 reg.ID.String(),
		RegistrationNumber: reg.Number,
		TrackingCode:       reg.TrackingCode(),
		Status:             string(reg.Status),
	})
}

// HandleGet handles GET /registration/{number}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reg, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleParentData handles PUT /registration/{number}/parent-data.
func (h *Handler) HandleParentData(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[models.ParentDataRequest](w, r)
	if !ok {
		return
	}
	reg, err := h.service.UpdateParentData(r.Context(), chi.URLParam(r, "number"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleAcademicData handles PUT /registration/{number}/academic-data.
func (h *Handler) HandleAcademicData(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[models.AcademicDataRequest](w, r)
	if !ok {
		return
	}
	reg, err := h.service.UpdateAcademicData(r.Context(), chi.URLParam(r, "number"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleBulkUpdate handles PUT /registration/{number}.
func (h *Handler) HandleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[models.BulkUpdateRequest](w, r)
	if !ok {
		return
	}
	reg, err := h.service.BulkUpdate(r.Context(), chi.URLParam(r, "number"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleSubmit handles POST /registration/{number}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	reg, err := h.service.Submit(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"registrationNumber": reg.Number,
		"status":             reg.Status,
		"submittedAt":        reg.Tracking.SubmittedAt,
	})
}

// HandleDocuments handles POST /registration/{number}/documents. Files
// arrive as multipart fields named after their document type; each is
// type-sniffed against the per-field allowlist before it is stored.
func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize())
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request is not valid multipart form data"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	total := 0
	for _, headers := range r.MultipartForm.File {
		total += len(headers)
	}
	if total == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "no files uploaded"))
		return
	}
	if h.upload.MaxFiles > 0 && total > h.upload.MaxFiles {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("at most %d files may be uploaded per request", h.upload.MaxFiles)))
		return
	}

	var reg *models.Registration
	for field, headers := range r.MultipartForm.File {
		docType, ok := models.ParseDocumentType(field)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("unknown document field %q", field)))
			return
		}
		header := headers[len(headers)-1] // last upload of a repeated field wins
		if h.upload.MaxFileSize > 0 && header.Size > h.upload.MaxFileSize {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("%s exceeds the %d byte limit", field, h.upload.MaxFileSize)))
			return
		}

		file, err := header.Open()
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read upload"))
			return
		}
		content, err := checkContentType(docType, file)
		if err != nil {
			_ = file.Close()
			httputil.WriteError(w, err)
			return
		}
		reg, err = h.service.RecordDocument(r.Context(), number, string(docType), header.Filename, content)
		_ = file.Close()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) maxRequestSize() int64 {
	size := h.upload.MaxFileSize
	if size <= 0 {
		size = 5 << 20
	}
	files := int64(h.upload.MaxFiles)
	if files <= 0 {
		files = 5
	}
	return size*files + (1 << 20) // room for multipart framing
}

// checkContentType sniffs the payload and verifies it against the
// allowlist for the document type. Photos must be images; every other
// document may also be a PDF.
func checkContentType(docType models.DocumentType, file io.Reader) (io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read upload")
	}
	head = head[:n]

	detected := http.DetectContentType(head)
	if !allowedContentType(docType, detected) {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s does not accept content of type %s", docType, detected))
	}
	return io.MultiReader(bytes.NewReader(head), file), nil
}

func allowedContentType(docType models.DocumentType, contentType string) bool {
	if strings.HasPrefix(contentType, "image/jpeg") || strings.HasPrefix(contentType, "image/png") {
		return true
	}
	if docType == models.DocPhoto {
		return false
	}
	return strings.HasPrefix(contentType, "application/pdf")
}
