package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/service"
	"go.uber.org/zap"
)

// DocumentHandler handles HTTP requests for documents and their versions
type DocumentHandler struct {
	documentService *service.DocumentService
	maxUploadMB     int64
	logger          *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler instance
func NewDocumentHandler(documentService *service.DocumentService, maxUploadMB int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadMB:     maxUploadMB,
		logger:          logger,
	}
}

// Create godoc
// @Summary Upload a new document
// @Description Upload a document file with metadata and start its approval workflow
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param metadata formData string true "Document metadata as JSON (CreateDocumentRequest)"
// @Success 201 {object} domain.DocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid upload: file field is required")
		return
	}
	defer file.Close()

	metadata := r.FormValue("metadata")
	if metadata == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid upload: metadata field is required")
		return
	}

	var req domain.CreateDocumentRequest
	if err := parseJSON(metadata, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid metadata: must be valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.documentService.Create(r.Context(), &req, file, header.Size, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.handleDocumentError(w, err, "failed to create document")
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get document by ID
// @Description Get a document with its workflow stages
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {object} domain.DocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	dto, err := h.documentService.GetByID(r.Context(), id)
	if err != nil {
		h.handleDocumentError(w, err, "failed to get document")
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// List godoc
// @Summary List documents
// @Description Get paginated list of documents visible to the current user
// @Tags Documents
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 100)" default(20)
// @Param status query string false "Filter by document status"
// @Param purpose query string false "Filter by purpose"
// @Param priority query string false "Filter by priority" Enums(routine, priority, urgent, emergency)
// @Param classification query string false "Filter by classification"
// @Param search query string false "Search in title and tracking number"
// @Param tag query string false "Filter by tag"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.DocumentDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	filter := &domain.DocumentListFilter{
		Status:         domain.DocumentStatus(q.Get("status")),
		Purpose:        q.Get("purpose"),
		Priority:       domain.Priority(q.Get("priority")),
		Classification: domain.Classification(q.Get("classification")),
		Search:         q.Get("search"),
		Tag:            q.Get("tag"),
		Page:           page,
		PageSize:       pageSize,
	}

	result, err := h.documentService.List(r.Context(), filter)
	if err != nil {
		h.handleDocumentError(w, err, "failed to list documents")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Download godoc
// @Summary Download document
// @Description Download the current version of the document file
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document ID" format(uuid)
// @Success 200
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	reader, document, err := h.documentService.Download(r.Context(), id)
	if err != nil {
		h.handleDocumentError(w, err, "failed to download document")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+document.Filename+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")

	_, _ = io.Copy(w, reader)
}

// ListVersions godoc
// @Summary List document versions
// @Description Get the full version history of a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {array} domain.DocumentVersionDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/versions [get]
func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	versions, err := h.documentService.ListVersions(r.Context(), id)
	if err != nil {
		h.handleDocumentError(w, err, "failed to list document versions")
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// DownloadVersion godoc
// @Summary Download document version
// @Description Download a specific version of the document file
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document ID" format(uuid)
// @Param versionId path string true "Version ID" format(uuid)
// @Success 200
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/versions/{versionId}/download [get]
func (h *DocumentHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	versionID, ok := parseUUIDParam(w, r, "versionId", "version ID")
	if !ok {
		return
	}

	reader, version, err := h.documentService.DownloadVersion(r.Context(), id, versionID)
	if err != nil {
		h.handleDocumentError(w, err, "failed to download document version")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+version.Filename+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")

	_, _ = io.Copy(w, reader)
}

// Delete godoc
// @Summary Delete document
// @Description Delete a document, its versions, and its workflow (admin only)
// @Tags Documents
// @Param id path string true "Document ID" format(uuid)
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	if err := h.documentService.Delete(r.Context(), id); err != nil {
		h.handleDocumentError(w, err, "failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LookupCaseReference godoc
// @Summary Look up the document's case in the legacy records system
// @Description Query the legacy case register for the document's case reference
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {object} records.CaseRecord
// @Failure 404 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/case-record [get]
func (h *DocumentHandler) LookupCaseReference(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	record, err := h.documentService.LookupCaseReference(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordsClientNotAvailable):
			respondWithError(w, http.StatusServiceUnavailable, "Legacy records lookup is not available")
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "No matching case found in the records system")
		default:
			h.handleDocumentError(w, err, "failed to look up case reference")
		}
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// handleDocumentError maps document service errors to HTTP responses
func (h *DocumentHandler) handleDocumentError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrUserContextRequired), errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "You do not have permission to perform this action")
	case errors.Is(err, service.ErrDocumentNotFound):
		respondWithError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrVersionNotFound):
		respondWithError(w, http.StatusNotFound, "Document version not found")
	case errors.Is(err, service.ErrFileTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, "File exceeds the maximum allowed size")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// parseUUIDParam parses a chi URL parameter as a UUID, writing a 400 response on failure
func parseUUIDParam(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a valid UUID", label))
		return uuid.Nil, false
	}
	return id, true
}
