package mapper

import (
	"github.com/pnp-dms/docflow-api/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// ToDocumentDTO converts Document to DocumentDTO
func ToDocumentDTO(document *domain.Document) domain.DocumentDTO {
	dto := domain.DocumentDTO{
		ID:               document.ID,
		TrackingNumber:   document.TrackingNumber,
		Title:            document.Title,
		Purpose:          document.Purpose,
		OfficeUnit:       document.OfficeUnit,
		CaseReference:    document.CaseReference,
		Classification:   document.Classification,
		Priority:         document.Priority,
		Deadline:         document.Deadline,
		Notes:            document.Notes,
		IsUrgent:         document.IsUrgent,
		CurrentVersion:   document.CurrentVersion,
		CurrentStageName: document.CurrentStageName,
		Status:           document.Status,
		Tags:             document.Tags,
		Filename:         document.Filename,
		ContentType:      document.ContentType,
		Size:             document.Size,
		UploadedByID:     document.UploadedByID,
		CreatedAt:        document.CreatedAt.Format(timeFormat),
		UpdatedAt:        document.UpdatedAt.Format(timeFormat),
	}

	if document.UploadedBy != nil {
		dto.UploadedByName = document.UploadedBy.Name
	}

	if len(document.Stages) > 0 {
		dto.Stages = make([]domain.StageDTO, len(document.Stages))
		for i, stage := range document.Stages {
			dto.Stages[i] = ToStageDTO(&stage)
		}
	}

	return dto
}

// ToStageDTO converts WorkflowStage to StageDTO
func ToStageDTO(stage *domain.WorkflowStage) domain.StageDTO {
	dto := domain.StageDTO{
		ID:                    stage.ID,
		DocumentID:            stage.DocumentID,
		Name:                  stage.Name,
		StageOrder:            stage.StageOrder,
		RequiredRole:          stage.RequiredRole,
		AssignedToID:          stage.AssignedToID,
		Status:                stage.Status,
		Deadline:              stage.Deadline,
		CompletedAt:           stage.CompletedAt,
		RejectionReason:       stage.RejectionReason,
		RequiresSignedUpload:  stage.RequiresSignedUpload,
		SignedVersionUploaded: stage.SignedVersionUploaded,
		CreatedAt:             stage.CreatedAt.Format(timeFormat),
	}

	if stage.AssignedTo != nil {
		dto.AssignedToName = stage.AssignedTo.Name
	}

	return dto
}

// ToStageCommentDTO converts StageComment to StageCommentDTO
func ToStageCommentDTO(comment *domain.StageComment) domain.StageCommentDTO {
	dto := domain.StageCommentDTO{
		ID:        comment.ID,
		StageID:   comment.StageID,
		AuthorID:  comment.AuthorID,
		Kind:      comment.Kind,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt.Format(timeFormat),
	}

	if comment.Author != nil {
		dto.AuthorName = comment.Author.Name
	}

	return dto
}

// ToDocumentVersionDTO converts DocumentVersion to DocumentVersionDTO
func ToDocumentVersionDTO(version *domain.DocumentVersion) domain.DocumentVersionDTO {
	dto := domain.DocumentVersionDTO{
		ID:              version.ID,
		DocumentID:      version.DocumentID,
		StageID:         version.StageID,
		VersionNumber:   version.VersionNumber,
		Filename:        version.Filename,
		ContentType:     version.ContentType,
		Size:            version.Size,
		UploadedByID:    version.UploadedByID,
		Reason:          version.Reason,
		IsSignedVersion: version.IsSignedVersion,
		CreatedAt:       version.CreatedAt.Format(timeFormat),
	}

	if version.UploadedBy != nil {
		dto.UploadedByName = version.UploadedBy.Name
	}

	return dto
}

// ToSignatureDTO converts Signature to SignatureDTO
func ToSignatureDTO(signature *domain.Signature) domain.SignatureDTO {
	dto := domain.SignatureDTO{
		ID:       signature.ID,
		StageID:  signature.StageID,
		SignerID: signature.SignerID,
		Type:     signature.Type,
		SignerIP: signature.SignerIP,
		SignedAt: signature.SignedAt.Format(timeFormat),
	}

	if signature.Signer != nil {
		dto.SignerName = signature.Signer.Name
	}

	return dto
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         notification.ID,
		DocumentID: notification.DocumentID,
		StageID:    notification.StageID,
		Type:       notification.Type,
		Message:    notification.Message,
		Read:       notification.Read,
		CreatedAt:  notification.CreatedAt.Format(timeFormat),
	}
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Unit:        user.Unit,
		Rank:        user.Rank,
		Designation: user.Designation,
		IsActive:    user.IsActive,
	}
}
