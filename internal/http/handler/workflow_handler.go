package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/service"
	"go.uber.org/zap"
)

// WorkflowHandler handles HTTP requests for workflow stages, signatures,
// comments, and signed version uploads
type WorkflowHandler struct {
	workflowService *service.WorkflowService
	maxUploadMB     int64
	maxSignatureMB  int64
	logger          *zap.Logger
}

// NewWorkflowHandler creates a new WorkflowHandler instance
func NewWorkflowHandler(workflowService *service.WorkflowService, maxUploadMB, maxSignatureMB int64, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		maxUploadMB:     maxUploadMB,
		maxSignatureMB:  maxSignatureMB,
		logger:          logger,
	}
}

// ListStages godoc
// @Summary List workflow stages
// @Description Get all workflow stages of a document in order
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {array} domain.StageDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages [get]
func (h *WorkflowHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}

	stages, err := h.workflowService.GetStages(r.Context(), documentID)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to list stages")
		return
	}

	respondJSON(w, http.StatusOK, stages)
}

// AssignStage godoc
// @Summary Assign a workflow stage
// @Description Assign or unassign a user to a workflow stage (admins and authority users)
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param request body domain.AssignStageRequest true "Assignment request"
// @Success 200 {object} domain.StageDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/assign [put]
func (h *WorkflowHandler) AssignStage(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	var req domain.AssignStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stage, err := h.workflowService.AssignStage(r.Context(), documentID, stageID, &req)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to assign stage")
		return
	}

	respondJSON(w, http.StatusOK, stage)
}

// UpdateStageStatus godoc
// @Summary Update stage status
// @Description Approve, reject, or restart a workflow stage
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param request body domain.UpdateStageStatusRequest true "Status update request"
// @Success 200 {object} domain.StageDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/status [put]
func (h *WorkflowHandler) UpdateStageStatus(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	var req domain.UpdateStageStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	stage, err := h.workflowService.UpdateStageStatus(r.Context(), documentID, stageID, &req)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to update stage status")
		return
	}

	respondJSON(w, http.StatusOK, stage)
}

// SignStage godoc
// @Summary Sign a workflow stage
// @Description Record a signature on the stage with a captured signature image
// @Tags Workflow
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param signature formData file true "Signature image"
// @Param type formData string true "Signature capture type" Enums(canvas, upload)
// @Success 201 {object} domain.SignatureDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/sign [post]
func (h *WorkflowHandler) SignStage(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSignatureMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxSignatureMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Signature image too large: maximum size is %dMB", h.maxSignatureMB))
		return
	}

	file, header, err := r.FormFile("signature")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid upload: signature field is required")
		return
	}
	defer file.Close()

	signatureType := domain.SignatureType(r.FormValue("type"))

	signature, err := h.workflowService.SignStage(
		r.Context(), documentID, stageID, signatureType,
		file, header.Size, header.Filename, header.Header.Get("Content-Type"),
		clientIP(r),
	)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to sign stage")
		return
	}

	respondJSON(w, http.StatusCreated, signature)
}

// UploadSignedVersion godoc
// @Summary Upload a signed document version
// @Description Upload the signed copy of the document for a stage; completes the stage when it satisfies the signed upload requirement
// @Tags Workflow
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param file formData file true "Signed document file"
// @Param reason formData string false "Reason for the new version"
// @Success 201 {object} domain.DocumentVersionDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/signed-version [post]
func (h *WorkflowHandler) UploadSignedVersion(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

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

	version, err := h.workflowService.UploadSignedVersion(
		r.Context(), documentID, stageID,
		file, header.Size, header.Filename, header.Header.Get("Content-Type"),
		r.FormValue("reason"),
	)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to upload signed version")
		return
	}

	respondJSON(w, http.StatusCreated, version)
}

// AddComment godoc
// @Summary Add a stage comment
// @Description Add a comment to a workflow stage
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param request body domain.AddStageCommentRequest true "Comment request"
// @Success 201 {object} domain.StageCommentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/comments [post]
func (h *WorkflowHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	var req domain.AddStageCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	comment, err := h.workflowService.AddStageComment(r.Context(), documentID, stageID, &req)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to add comment")
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

// ListComments godoc
// @Summary List stage comments
// @Description Get all comments on a workflow stage in chronological order
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Success 200 {array} domain.StageCommentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/comments [get]
func (h *WorkflowHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	comments, err := h.workflowService.ListStageComments(r.Context(), documentID, stageID)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to list comments")
		return
	}

	respondJSON(w, http.StatusOK, comments)
}

// ListSignatures godoc
// @Summary List stage signatures
// @Description Get all signatures recorded on a workflow stage
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Success 200 {array} domain.SignatureDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/signatures [get]
func (h *WorkflowHandler) ListSignatures(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}

	signatures, err := h.workflowService.ListStageSignatures(r.Context(), documentID, stageID)
	if err != nil {
		h.handleWorkflowError(w, err, "failed to list signatures")
		return
	}

	respondJSON(w, http.StatusOK, signatures)
}

// DownloadSignature godoc
// @Summary Download a signature image
// @Description Stream the stored image of a recorded signature
// @Tags Workflow
// @Produce octet-stream
// @Param id path string true "Document ID" format(uuid)
// @Param stageId path string true "Stage ID" format(uuid)
// @Param signatureId path string true "Signature ID" format(uuid)
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/stages/{stageId}/signatures/{signatureId}/download [get]
func (h *WorkflowHandler) DownloadSignature(w http.ResponseWriter, r *http.Request) {
	documentID, ok := parseUUIDParam(w, r, "id", "document ID")
	if !ok {
		return
	}
	stageID, ok := parseUUIDParam(w, r, "stageId", "stage ID")
	if !ok {
		return
	}
	signatureID, ok := parseUUIDParam(w, r, "signatureId", "signature ID")
	if !ok {
		return
	}

	reader, signature, err := h.workflowService.DownloadSignature(r.Context(), documentID, stageID, signatureID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Signature not found")
			return
		}
		h.handleWorkflowError(w, err, "failed to download signature")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\"signature-"+signature.ID.String()+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")

	_, _ = io.Copy(w, reader)
}

// handleWorkflowError maps workflow service errors to HTTP responses
func (h *WorkflowHandler) handleWorkflowError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrUserContextRequired), errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "You do not have permission to perform this action")
	case errors.Is(err, service.ErrDocumentNotFound):
		respondWithError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrStageNotFound):
		respondWithError(w, http.StatusNotFound, "Workflow stage not found")
	case errors.Is(err, service.ErrUserNotFound):
		respondWithError(w, http.StatusBadRequest, "Assignee not found")
	case errors.Is(err, service.ErrStageNotActionable):
		respondWithError(w, http.StatusConflict, "Stage is not in a state that allows this action")
	case errors.Is(err, service.ErrSignedUploadRequired):
		respondWithError(w, http.StatusConflict, "A signed version must be uploaded before this stage can be completed")
	case errors.Is(err, service.ErrAlreadySigned):
		respondWithError(w, http.StatusConflict, "You have already signed this stage")
	case errors.Is(err, service.ErrRejectionReasonRequired):
		respondWithError(w, http.StatusBadRequest, "A reason is required when rejecting a stage")
	case errors.Is(err, service.ErrDocumentTerminal):
		respondWithError(w, http.StatusConflict, "The document workflow is already finished")
	case errors.Is(err, service.ErrFileTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, "File exceeds the maximum allowed size")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// clientIP extracts the originating client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
