package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/mapper"
	"github.com/pnp-dms/docflow-api/internal/records"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentService handles document upload, retrieval and version management.
// Upload assigns the tracking number, stores the payload, creates the
// document row plus version 1, and instantiates the workflow stage set in a
// single transaction.
type DocumentService struct {
	db              *gorm.DB
	documentRepo    *repository.DocumentRepository
	versionRepo     *repository.VersionRepository
	trackingNumbers *TrackingNumberService
	workflow        *WorkflowService
	access          *AccessService
	storage         storage.Storage
	recordsClient   *records.Client
	logger          *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	db *gorm.DB,
	documentRepo *repository.DocumentRepository,
	versionRepo *repository.VersionRepository,
	trackingNumbers *TrackingNumberService,
	workflow *WorkflowService,
	access *AccessService,
	store storage.Storage,
	recordsClient *records.Client,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		db:              db,
		documentRepo:    documentRepo,
		versionRepo:     versionRepo,
		trackingNumbers: trackingNumbers,
		workflow:        workflow,
		access:          access,
		storage:         store,
		recordsClient:   recordsClient,
		logger:          logger,
	}
}

// Create uploads a new document and instantiates its approval workflow
func (s *DocumentService) Create(
	ctx context.Context,
	req *domain.CreateDocumentRequest,
	data io.Reader,
	size int64,
	filename, contentType string,
) (*domain.DocumentDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: file payload is empty", ErrInvalidInput)
	}
	if size > domain.MaxDocumentUploadBytes {
		return nil, ErrFileTooLarge
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityRoutine
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, req.Priority)
	}
	if req.Classification != "" && !req.Classification.IsValid() {
		return nil, fmt.Errorf("%w: unknown classification %q", ErrInvalidInput, req.Classification)
	}

	storagePath, storedSize, err := s.storage.Upload(ctx, storage.PrefixDocuments, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	trackingNumber := s.trackingNumbers.Generate(ctx, req.Purpose)

	document := &domain.Document{
		TrackingNumber:   trackingNumber,
		Title:            req.Title,
		Purpose:          req.Purpose,
		OfficeUnit:       req.OfficeUnit,
		CaseReference:    req.CaseReference,
		Classification:   req.Classification,
		Priority:         priority,
		Deadline:         req.Deadline,
		Notes:            req.Notes,
		IsUrgent:         priority.IsUrgent(),
		CurrentVersion:   1,
		Status:           domain.DocumentStatusPending,
		Tags:             pq.StringArray(req.Tags),
		Filename:         filename,
		ContentType:      contentType,
		Size:             storedSize,
		UploadedByID:     userCtx.UserID,
		StoragePath:      storagePath,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewDocumentRepository(tx).Create(ctx, document); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}

		version := &domain.DocumentVersion{
			DocumentID:    document.ID,
			VersionNumber: 1,
			Filename:      filename,
			ContentType:   contentType,
			Size:          storedSize,
			StoragePath:   storagePath,
			UploadedByID:  userCtx.UserID,
			Reason:        "Initial upload",
		}
		if err := repository.NewVersionRepository(tx).Create(ctx, version); err != nil {
			return fmt.Errorf("failed to create initial version: %w", err)
		}

		if _, err := s.workflow.Instantiate(ctx, tx, document); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned document blob",
				zap.String("storage_path", storagePath), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("document_id", document.ID.String()),
		zap.String("tracking_number", trackingNumber),
		zap.String("purpose", req.Purpose),
		zap.String("uploaded_by", userCtx.UserID.String()))

	dto := mapper.ToDocumentDTO(document)
	return &dto, nil
}

// GetByID returns a document the user may access. Role access and the
// classification gate must both pass; denials surface as not-found.
func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.DocumentDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}
	if !s.access.CheckClassification(userCtx, document) {
		return nil, ErrDocumentNotFound
	}

	dto := mapper.ToDocumentDTO(document)
	return &dto, nil
}

// List returns documents visible to the user, filtered and paginated.
// The access scope restricts rows before filters apply; the classification
// gate then drops rows the user may know about but not read.
func (s *DocumentService) List(ctx context.Context, filter *domain.DocumentListFilter) (*domain.PaginatedResponse, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	documents, total, err := s.documentRepo.List(ctx, filter, s.access.Scope(userCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	dtos := make([]domain.DocumentDTO, 0, len(documents))
	for i := range documents {
		if !s.access.CheckClassification(userCtx, &documents[i]) {
			continue
		}
		dtos = append(dtos, mapper.ToDocumentDTO(&documents[i]))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Download streams the current file payload of a document
func (s *DocumentService) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *domain.Document, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrUserContextRequired
	}

	document, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, nil, ErrDocumentNotFound
	}
	if !s.access.CheckClassification(userCtx, document) {
		return nil, nil, ErrDocumentNotFound
	}

	reader, err := s.storage.Download(ctx, document.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document payload: %w", err)
	}
	return reader, document, nil
}

// ListVersions returns all stored versions of a document in version order
func (s *DocumentService) ListVersions(ctx context.Context, id uuid.UUID) ([]domain.DocumentVersionDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}
	if !s.access.CheckClassification(userCtx, document) {
		return nil, ErrDocumentNotFound
	}

	versions, err := s.versionRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	dtos := make([]domain.DocumentVersionDTO, len(versions))
	for i, version := range versions {
		dtos[i] = mapper.ToDocumentVersionDTO(&version)
	}
	return dtos, nil
}

// DownloadVersion streams a specific stored version of a document
func (s *DocumentService) DownloadVersion(ctx context.Context, documentID, versionID uuid.UUID) (io.ReadCloser, *domain.DocumentVersion, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrUserContextRequired
	}

	document, err := s.documentRepo.GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, nil, ErrDocumentNotFound
	}
	if !s.access.CheckClassification(userCtx, document) {
		return nil, nil, ErrDocumentNotFound
	}

	version, err := s.versionRepo.GetByID(ctx, versionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load version: %w", err)
	}
	if version.DocumentID != documentID {
		return nil, nil, ErrVersionNotFound
	}

	reader, err := s.storage.Download(ctx, version.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open version payload: %w", err)
	}
	return reader, version, nil
}

// Delete removes a document and its dependent rows. Admin only.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if !userCtx.IsAdmin() {
		return ErrPermissionDenied
	}

	document, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := s.storage.Delete(ctx, document.StoragePath); err != nil {
		s.logger.Warn("failed to remove document blob",
			zap.String("storage_path", document.StoragePath), zap.Error(err))
	}

	s.logger.Info("document deleted",
		zap.String("document_id", id.String()),
		zap.String("tracking_number", document.TrackingNumber),
		zap.String("deleted_by", userCtx.UserID.String()))

	return nil
}

// LookupCaseReference resolves a document's case reference against the
// legacy records system
func (s *DocumentService) LookupCaseReference(ctx context.Context, id uuid.UUID) (*records.CaseRecord, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !s.recordsClient.IsEnabled() {
		return nil, ErrRecordsClientNotAvailable
	}

	document, err := s.documentRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}

	if document.CaseReference == "" {
		return nil, fmt.Errorf("%w: document carries no case reference", ErrInvalidInput)
	}

	record, err := s.recordsClient.LookupCase(ctx, document.CaseReference)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}
