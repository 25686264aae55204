package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/mapper"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowService drives workflow instantiation and every stage transition:
// assignment, signing, explicit approve/reject, and signed-version upload.
// Each transition runs in a single transaction that locks the document row,
// so the all-stages-completed recompute always observes a consistent snapshot
// of sibling stages. Notifications are collected during the transaction and
// emitted only after commit; a delivery failure never fails the transition.
type WorkflowService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	access   *AccessService
	storage  storage.Storage
	notifier Notifier
	logger   *zap.Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	access *AccessService,
	store storage.Storage,
	notifier Notifier,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		db:       db,
		userRepo: userRepo,
		access:   access,
		storage:  store,
		notifier: notifier,
		logger:   logger,
	}
}

// pendingNotification is a notification decided inside a transaction but
// delivered only after the transaction commits.
type pendingNotification struct {
	userID     uuid.UUID
	documentID uuid.UUID
	stageID    *uuid.UUID
	kind       domain.NotificationType
	message    string
}

func (s *WorkflowService) emit(ctx context.Context, pending []pendingNotification) {
	for _, n := range pending {
		if err := s.notifier.Notify(ctx, n.userID, n.documentID, n.stageID, n.kind, n.message); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("user_id", n.userID.String()),
				zap.String("type", string(n.kind)),
				zap.Error(err))
		}
	}
}

// lockDocument loads the document row under a row-level write lock. Every
// stage-mutating operation goes through this so concurrent transitions on the
// same document serialize.
func lockDocument(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*domain.Document, error) {
	var document domain.Document
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&document, "id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &document, nil
}

func loadStage(ctx context.Context, tx *gorm.DB, documentID, stageID uuid.UUID) (*domain.WorkflowStage, error) {
	stage, err := repository.NewStageRepository(tx).GetByID(ctx, stageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if stage.DocumentID != documentID {
		return nil, ErrStageNotFound
	}
	return stage, nil
}

// Instantiate creates the full ordered stage set for a freshly uploaded
// document from its purpose's template, back-distributing stage deadlines
// from the document deadline. It must run inside the upload transaction; a
// persistence failure propagates and fails the whole upload.
func (s *WorkflowService) Instantiate(ctx context.Context, tx *gorm.DB, document *domain.Document) ([]domain.WorkflowStage, error) {
	template := domain.GetTemplate(document.Purpose)
	totalStages := len(template.Stages)

	stages := make([]domain.WorkflowStage, 0, totalStages)
	for _, def := range template.Stages {
		stages = append(stages, domain.WorkflowStage{
			DocumentID:           document.ID,
			Name:                 def.Name,
			StageOrder:           def.Order,
			RequiredRole:         def.RequiredRole,
			Status:               domain.StageStatusPending,
			Deadline:             domain.AllocateStageDeadline(document.Deadline, def.Order, totalStages, document.Priority),
			RequiresSignedUpload: def.RequiresSignedUpload,
		})
	}

	if err := repository.NewStageRepository(tx).CreateBatch(ctx, stages); err != nil {
		return nil, fmt.Errorf("failed to create workflow stages: %w", err)
	}

	currentStageName := "Pending " + template.Stages[0].Name
	if err := tx.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", document.ID).
		Update("current_stage_name", currentStageName).Error; err != nil {
		return nil, fmt.Errorf("failed to set current stage name: %w", err)
	}
	document.CurrentStageName = currentStageName
	document.Stages = stages

	return stages, nil
}

// GetStages returns the ordered stage list of a document the user may access
func (s *WorkflowService) GetStages(ctx context.Context, documentID uuid.UUID) ([]domain.StageDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := repository.NewDocumentRepository(s.db).GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		// Access denials on reads are indistinguishable from missing documents
		return nil, ErrDocumentNotFound
	}

	dtos := make([]domain.StageDTO, len(document.Stages))
	for i, stage := range document.Stages {
		dtos[i] = mapper.ToStageDTO(&stage)
	}
	return dtos, nil
}

// AssignStage sets or clears a stage's assignee. Assigning moves the stage to
// in_progress; unassigning reverts it to pending. The target user's role must
// match the stage's required role.
func (s *WorkflowService) AssignStage(ctx context.Context, documentID, stageID uuid.UUID, req *domain.AssignStageRequest) (*domain.StageDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.HasAnyRole(domain.RoleAdmin, domain.RoleAuthority) {
		return nil, ErrPermissionDenied
	}

	var stage *domain.WorkflowStage
	var pending []pendingNotification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := lockDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if document.Status.IsTerminal() {
			return ErrDocumentTerminal
		}

		stage, err = loadStage(ctx, tx, documentID, stageID)
		if err != nil {
			return err
		}
		if stage.Status.IsTerminal() {
			return ErrStageNotActionable
		}

		updates := map[string]interface{}{}
		if req.AssignedToID != nil {
			assignee, err := repository.NewUserRepository(tx).GetByID(ctx, *req.AssignedToID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to load assignee: %w", err)
			}
			if assignee.Role != stage.RequiredRole {
				return fmt.Errorf("%w: assignee role %q does not match required role %q",
					ErrInvalidInput, assignee.Role, stage.RequiredRole)
			}

			updates["assigned_to_id"] = *req.AssignedToID
			updates["status"] = domain.StageStatusInProgress
			stage.AssignedToID = req.AssignedToID
			stage.AssignedTo = assignee
			stage.Status = domain.StageStatusInProgress

			pending = append(pending, pendingNotification{
				userID:     *req.AssignedToID,
				documentID: documentID,
				stageID:    &stage.ID,
				kind:       domain.NotificationStageAssigned,
				message:    fmt.Sprintf("You have been assigned stage %q of document %s", stage.Name, document.TrackingNumber),
			})
		} else {
			updates["assigned_to_id"] = nil
			updates["status"] = domain.StageStatusPending
			stage.AssignedToID = nil
			stage.AssignedTo = nil
			stage.Status = domain.StageStatusPending
		}

		if err := repository.NewStageRepository(tx).UpdateFields(ctx, stage.ID, updates); err != nil {
			return fmt.Errorf("failed to update stage assignment: %w", err)
		}

		// Assignment flips a stage between pending and in_progress, which can
		// move the document itself between pending and in_progress.
		stages, err := repository.NewStageRepository(tx).ListByDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to load stages for recompute: %w", err)
		}
		if newStatus := domain.ComputeDocumentStatus(stages); newStatus != document.Status {
			if err := tx.WithContext(ctx).
				Model(&domain.Document{}).
				Where("id = ?", document.ID).
				Update("status", newStatus).Error; err != nil {
				return fmt.Errorf("failed to recompute document status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, pending)

	s.logger.Info("stage assignment updated",
		zap.String("document_id", documentID.String()),
		zap.String("stage_id", stageID.String()),
		zap.Bool("assigned", req.AssignedToID != nil))

	dto := mapper.ToStageDTO(stage)
	return &dto, nil
}

// SignStage records a signature (canvas capture or uploaded image) against a
// stage. If the signer is the recorded assignee the stage completes and the
// document status is recomputed.
func (s *WorkflowService) SignStage(
	ctx context.Context,
	documentID, stageID uuid.UUID,
	signatureType domain.SignatureType,
	data io.Reader,
	size int64,
	filename, contentType, signerIP string,
) (*domain.SignatureDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !signatureType.IsValid() {
		return nil, fmt.Errorf("%w: unknown signature type %q", ErrInvalidInput, signatureType)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: signature payload is empty", ErrInvalidInput)
	}
	if size > domain.MaxSignatureImageBytes {
		return nil, ErrFileTooLarge
	}

	storagePath, storedSize, err := s.storage.Upload(ctx, storage.PrefixSignatures, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store signature image: %w", err)
	}

	signature := &domain.Signature{
		StageID:     stageID,
		SignerID:    userCtx.UserID,
		Type:        signatureType,
		StoragePath: storagePath,
		Size:        storedSize,
		SignerIP:    signerIP,
		SignedAt:    time.Now(),
	}

	var pending []pendingNotification

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := lockDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if document.Status.IsTerminal() {
			return ErrDocumentTerminal
		}

		stage, err := loadStage(ctx, tx, documentID, stageID)
		if err != nil {
			return err
		}
		if stage.Status.IsTerminal() {
			return ErrStageNotActionable
		}

		if !s.mayActOnStage(userCtx, stage) {
			return ErrPermissionDenied
		}

		exists, err := repository.NewSignatureRepository(tx).ExistsForSigner(ctx, stage.ID, userCtx.UserID)
		if err != nil {
			return fmt.Errorf("failed to check existing signature: %w", err)
		}
		if exists {
			return ErrAlreadySigned
		}

		if err := repository.NewSignatureRepository(tx).Create(ctx, signature); err != nil {
			return fmt.Errorf("failed to record signature: %w", err)
		}

		// Only the recorded assignee's signature completes the stage
		if stage.AssignedToID != nil && *stage.AssignedToID == userCtx.UserID {
			if err := s.completeStage(ctx, tx, stage); err != nil {
				return err
			}
			pending, err = s.recomputeAfterCompletion(ctx, tx, document, stage)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Best-effort cleanup of the orphaned blob
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned signature blob",
				zap.String("storage_path", storagePath), zap.Error(delErr))
		}
		return nil, err
	}

	s.emit(ctx, pending)

	s.logger.Info("stage signed",
		zap.String("document_id", documentID.String()),
		zap.String("stage_id", stageID.String()),
		zap.String("signer_id", userCtx.UserID.String()),
		zap.String("type", string(signatureType)))

	dto := mapper.ToSignatureDTO(signature)
	return &dto, nil
}

// UpdateStageStatus is the explicit approve/complete or reject transition.
// Stages that require a signed upload refuse explicit completion until the
// signed version has been uploaded; completion for those stages normally
// happens automatically through UploadSignedVersion.
func (s *WorkflowService) UpdateStageStatus(ctx context.Context, documentID, stageID uuid.UUID, req *domain.UpdateStageStatusRequest) (*domain.StageDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	if req.Status != domain.StageStatusCompleted && req.Status != domain.StageStatusRejected {
		return nil, fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput,
			domain.StageStatusCompleted, domain.StageStatusRejected)
	}
	if req.Status == domain.StageStatusRejected && req.Reason == "" {
		return nil, ErrRejectionReasonRequired
	}

	var stage *domain.WorkflowStage
	var pending []pendingNotification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := lockDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if document.Status.IsTerminal() {
			return ErrDocumentTerminal
		}

		stage, err = loadStage(ctx, tx, documentID, stageID)
		if err != nil {
			return err
		}
		if stage.Status.IsTerminal() {
			return ErrStageNotActionable
		}

		isAssignee := stage.AssignedToID != nil && *stage.AssignedToID == userCtx.UserID
		if !isAssignee && !userCtx.IsAdmin() {
			return ErrPermissionDenied
		}

		if req.Status == domain.StageStatusCompleted && stage.RequiresSignedUpload && !stage.SignedVersionUploaded {
			return ErrSignedUploadRequired
		}

		if req.Comment != "" {
			comment := &domain.StageComment{
				StageID:  stage.ID,
				AuthorID: &userCtx.UserID,
				Kind:     domain.StageCommentKindUser,
				Body:     req.Comment,
			}
			if err := repository.NewCommentRepository(tx).Create(ctx, comment); err != nil {
				return fmt.Errorf("failed to add stage comment: %w", err)
			}
		}

		switch req.Status {
		case domain.StageStatusCompleted:
			if err := s.completeStage(ctx, tx, stage); err != nil {
				return err
			}
			pending, err = s.recomputeAfterCompletion(ctx, tx, document, stage)
			if err != nil {
				return err
			}
		case domain.StageStatusRejected:
			now := time.Now()
			if err := repository.NewStageRepository(tx).UpdateFields(ctx, stage.ID, map[string]interface{}{
				"status":           domain.StageStatusRejected,
				"completed_at":     now,
				"rejection_reason": req.Reason,
			}); err != nil {
				return fmt.Errorf("failed to reject stage: %w", err)
			}
			stage.Status = domain.StageStatusRejected
			stage.CompletedAt = &now
			stage.RejectionReason = req.Reason

			// Rejection is terminal for the whole document
			if err := tx.WithContext(ctx).Model(&domain.Document{}).Where("id = ?", document.ID).Updates(map[string]interface{}{
				"status":             domain.DocumentStatusRejected,
				"current_stage_name": "Rejected at " + stage.Name,
			}).Error; err != nil {
				return fmt.Errorf("failed to mark document rejected: %w", err)
			}

			pending = append(pending, pendingNotification{
				userID:     document.UploadedByID,
				documentID: document.ID,
				stageID:    &stage.ID,
				kind:       domain.NotificationDocumentRejected,
				message:    fmt.Sprintf("Document %s was rejected at stage %q: %s", document.TrackingNumber, stage.Name, req.Reason),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, pending)

	s.logger.Info("stage status updated",
		zap.String("document_id", documentID.String()),
		zap.String("stage_id", stageID.String()),
		zap.String("status", string(req.Status)))

	dto := mapper.ToStageDTO(stage)
	return &dto, nil
}

// UploadSignedVersion stores a wet-signed scan as a new document version and
// auto-completes the target stage. Uploading the correctly flagged file is
// the approval action for requires_signed_upload stages.
func (s *WorkflowService) UploadSignedVersion(
	ctx context.Context,
	documentID, stageID uuid.UUID,
	data io.Reader,
	size int64,
	filename, contentType, reason string,
) (*domain.DocumentVersionDTO, error) {
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

	storagePath, storedSize, err := s.storage.Upload(ctx, storage.PrefixDocuments, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store signed version: %w", err)
	}

	var version *domain.DocumentVersion
	var pending []pendingNotification

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		document, err := lockDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if document.Status.IsTerminal() {
			return ErrDocumentTerminal
		}

		stages, err := repository.NewStageRepository(tx).ListByDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to load stages: %w", err)
		}
		document.Stages = stages

		if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
			return ErrDocumentNotFound
		}

		stage, err := loadStage(ctx, tx, documentID, stageID)
		if err != nil {
			return err
		}
		if stage.Status != domain.StageStatusPending && stage.Status != domain.StageStatusInProgress {
			return ErrStageNotActionable
		}

		isAssignee := stage.AssignedToID != nil && *stage.AssignedToID == userCtx.UserID
		if !isAssignee && !userCtx.IsAdmin() {
			return ErrPermissionDenied
		}

		// The locked document row makes this increment atomic
		newVersionNumber := document.CurrentVersion + 1
		version = &domain.DocumentVersion{
			DocumentID:      documentID,
			StageID:         &stage.ID,
			VersionNumber:   newVersionNumber,
			Filename:        filename,
			ContentType:     contentType,
			Size:            storedSize,
			StoragePath:     storagePath,
			UploadedByID:    userCtx.UserID,
			Reason:          reason,
			IsSignedVersion: true,
		}
		if err := repository.NewVersionRepository(tx).Create(ctx, version); err != nil {
			return fmt.Errorf("failed to create document version: %w", err)
		}

		if err := tx.WithContext(ctx).Model(&domain.Document{}).
			Where("id = ?", documentID).
			Update("current_version", newVersionNumber).Error; err != nil {
			return fmt.Errorf("failed to bump document version: %w", err)
		}
		document.CurrentVersion = newVersionNumber

		now := time.Now()
		if err := repository.NewStageRepository(tx).UpdateFields(ctx, stage.ID, map[string]interface{}{
			"signed_version_uploaded": true,
			"status":                  domain.StageStatusCompleted,
			"completed_at":            now,
		}); err != nil {
			return fmt.Errorf("failed to complete stage: %w", err)
		}
		stage.SignedVersionUploaded = true
		stage.Status = domain.StageStatusCompleted
		stage.CompletedAt = &now

		pending, err = s.recomputeAfterCompletion(ctx, tx, document, stage)
		return err
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned version blob",
				zap.String("storage_path", storagePath), zap.Error(delErr))
		}
		return nil, err
	}

	s.emit(ctx, pending)

	s.logger.Info("signed version uploaded",
		zap.String("document_id", documentID.String()),
		zap.String("stage_id", stageID.String()),
		zap.Int("version", version.VersionNumber))

	dto := mapper.ToDocumentVersionDTO(version)
	return &dto, nil
}

// AddStageComment attaches a user comment to a stage
func (s *WorkflowService) AddStageComment(ctx context.Context, documentID, stageID uuid.UUID, req *domain.AddStageCommentRequest) (*domain.StageCommentDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := repository.NewDocumentRepository(s.db).GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}

	stage, err := loadStage(ctx, s.db, documentID, stageID)
	if err != nil {
		return nil, err
	}

	comment := &domain.StageComment{
		StageID:  stage.ID,
		AuthorID: &userCtx.UserID,
		Kind:     domain.StageCommentKindUser,
		Body:     req.Body,
	}
	if err := repository.NewCommentRepository(s.db).Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add stage comment: %w", err)
	}

	dto := mapper.ToStageCommentDTO(comment)
	return &dto, nil
}

// ListStageComments returns a stage's comments in chronological order
func (s *WorkflowService) ListStageComments(ctx context.Context, documentID, stageID uuid.UUID) ([]domain.StageCommentDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := repository.NewDocumentRepository(s.db).GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}

	if _, err := loadStage(ctx, s.db, documentID, stageID); err != nil {
		return nil, err
	}

	comments, err := repository.NewCommentRepository(s.db).ListByStage(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage comments: %w", err)
	}

	dtos := make([]domain.StageCommentDTO, len(comments))
	for i, comment := range comments {
		dtos[i] = mapper.ToStageCommentDTO(&comment)
	}
	return dtos, nil
}

// ListStageSignatures returns the signatures recorded against a stage
func (s *WorkflowService) ListStageSignatures(ctx context.Context, documentID, stageID uuid.UUID) ([]domain.SignatureDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	document, err := repository.NewDocumentRepository(s.db).GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, ErrDocumentNotFound
	}

	if _, err := loadStage(ctx, s.db, documentID, stageID); err != nil {
		return nil, err
	}

	signatures, err := repository.NewSignatureRepository(s.db).ListByStage(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}

	dtos := make([]domain.SignatureDTO, len(signatures))
	for i, signature := range signatures {
		dtos[i] = mapper.ToSignatureDTO(&signature)
	}
	return dtos, nil
}

// DownloadSignature streams the stored image of a recorded signature
func (s *WorkflowService) DownloadSignature(ctx context.Context, documentID, stageID, signatureID uuid.UUID) (io.ReadCloser, *domain.Signature, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrUserContextRequired
	}

	document, err := repository.NewDocumentRepository(s.db).GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}
	if decision := s.access.CheckDocumentAccess(userCtx, document); !decision.Allowed {
		return nil, nil, ErrDocumentNotFound
	}

	if _, err := loadStage(ctx, s.db, documentID, stageID); err != nil {
		return nil, nil, err
	}

	signature, err := repository.NewSignatureRepository(s.db).GetByID(ctx, signatureID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signature: %w", err)
	}
	if signature.StageID != stageID {
		return nil, nil, ErrNotFound
	}

	reader, err := s.storage.Download(ctx, signature.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open signature payload: %w", err)
	}
	return reader, signature, nil
}

// mayActOnStage reports whether the user may sign a stage. When an assignee
// is recorded only that user or an admin may act; with no assignee the stage
// is open to anyone holding the required role.
func (s *WorkflowService) mayActOnStage(userCtx *auth.UserContext, stage *domain.WorkflowStage) bool {
	if userCtx.IsAdmin() {
		return true
	}
	if stage.AssignedToID != nil {
		return *stage.AssignedToID == userCtx.UserID
	}
	return userCtx.Role == stage.RequiredRole
}

func (s *WorkflowService) completeStage(ctx context.Context, tx *gorm.DB, stage *domain.WorkflowStage) error {
	now := time.Now()
	if err := repository.NewStageRepository(tx).UpdateFields(ctx, stage.ID, map[string]interface{}{
		"status":       domain.StageStatusCompleted,
		"completed_at": now,
	}); err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}
	stage.Status = domain.StageStatusCompleted
	stage.CompletedAt = &now
	return nil
}

// recomputeAfterCompletion re-reads the document's stages inside the
// transaction and derives the document-level status: completed when every
// stage finished, otherwise in_progress with the next pending stage surfaced.
func (s *WorkflowService) recomputeAfterCompletion(ctx context.Context, tx *gorm.DB, document *domain.Document, completed *domain.WorkflowStage) ([]pendingNotification, error) {
	stages, err := repository.NewStageRepository(tx).ListByDocument(ctx, document.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages for recompute: %w", err)
	}

	newStatus := domain.ComputeDocumentStatus(stages)
	updates := map[string]interface{}{"status": newStatus}
	var pending []pendingNotification

	if newStatus == domain.DocumentStatusCompleted {
		updates["current_stage_name"] = "Final Approval Completed"
		pending = append(pending, pendingNotification{
			userID:     document.UploadedByID,
			documentID: document.ID,
			kind:       domain.NotificationDocumentCompleted,
			message:    fmt.Sprintf("Document %s has completed all approval stages", document.TrackingNumber),
		})
	} else {
		if next := domain.NextPendingStage(stages, completed.StageOrder); next != nil {
			updates["current_stage_name"] = "Pending " + next.Name
			if next.AssignedToID != nil {
				pending = append(pending, pendingNotification{
					userID:     *next.AssignedToID,
					documentID: document.ID,
					stageID:    &next.ID,
					kind:       domain.NotificationStageReady,
					message:    fmt.Sprintf("Stage %q of document %s is ready for your action", next.Name, document.TrackingNumber),
				})
			}
		}
	}

	if err := tx.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", document.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to recompute document status: %w", err)
	}
	document.Status = newStatus

	return pending, nil
}
