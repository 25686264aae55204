package domain

import (
	"time"

	"github.com/google/uuid"
)

// DTOs for API responses

type DocumentDTO struct {
	ID               uuid.UUID      `json:"id"`
	TrackingNumber   string         `json:"trackingNumber"`
	Title            string         `json:"title"`
	Purpose          string         `json:"purpose"`
	OfficeUnit       string         `json:"officeUnit,omitempty"`
	CaseReference    string         `json:"caseReference,omitempty"`
	Classification   Classification `json:"classification,omitempty"`
	Priority         Priority       `json:"priority"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	IsUrgent         bool           `json:"isUrgent"`
	CurrentVersion   int            `json:"currentVersion"`
	CurrentStageName string         `json:"currentStageName,omitempty"`
	Status           DocumentStatus `json:"status"`
	Tags             []string       `json:"tags,omitempty"`
	Filename         string         `json:"filename"`
	ContentType      string         `json:"contentType"`
	Size             int64          `json:"size"`
	UploadedByID     uuid.UUID      `json:"uploadedById"`
	UploadedByName   string         `json:"uploadedByName,omitempty"`
	Stages           []StageDTO     `json:"stages,omitempty"`
	CreatedAt        string         `json:"createdAt"` // ISO 8601
	UpdatedAt        string         `json:"updatedAt"` // ISO 8601
}

type StageDTO struct {
	ID                    uuid.UUID   `json:"id"`
	DocumentID            uuid.UUID   `json:"documentId"`
	Name                  string      `json:"name"`
	StageOrder            int         `json:"stageOrder"`
	RequiredRole          UserRole    `json:"requiredRole"`
	AssignedToID          *uuid.UUID  `json:"assignedToId,omitempty"`
	AssignedToName        string      `json:"assignedToName,omitempty"`
	Status                StageStatus `json:"status"`
	Deadline              *time.Time  `json:"deadline,omitempty"`
	CompletedAt           *time.Time  `json:"completedAt,omitempty"`
	RejectionReason       string      `json:"rejectionReason,omitempty"`
	RequiresSignedUpload  bool        `json:"requiresSignedUpload"`
	SignedVersionUploaded bool        `json:"signedVersionUploaded"`
	CreatedAt             string      `json:"createdAt"` // ISO 8601
}

type StageCommentDTO struct {
	ID         uuid.UUID        `json:"id"`
	StageID    uuid.UUID        `json:"stageId"`
	AuthorID   *uuid.UUID       `json:"authorId,omitempty"`
	AuthorName string           `json:"authorName,omitempty"`
	Kind       StageCommentKind `json:"kind"`
	Body       string           `json:"body"`
	CreatedAt  string           `json:"createdAt"` // ISO 8601
}

type DocumentVersionDTO struct {
	ID              uuid.UUID  `json:"id"`
	DocumentID      uuid.UUID  `json:"documentId"`
	StageID         *uuid.UUID `json:"stageId,omitempty"`
	VersionNumber   int        `json:"versionNumber"`
	Filename        string     `json:"filename"`
	ContentType     string     `json:"contentType"`
	Size            int64      `json:"size"`
	UploadedByID    uuid.UUID  `json:"uploadedById"`
	UploadedByName  string     `json:"uploadedByName,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	IsSignedVersion bool       `json:"isSignedVersion"`
	CreatedAt       string     `json:"createdAt"` // ISO 8601
}

type SignatureDTO struct {
	ID         uuid.UUID     `json:"id"`
	StageID    uuid.UUID     `json:"stageId"`
	SignerID   uuid.UUID     `json:"signerId"`
	SignerName string        `json:"signerName,omitempty"`
	Type       SignatureType `json:"type"`
	SignerIP   string        `json:"signerIp,omitempty"`
	SignedAt   string        `json:"signedAt"` // ISO 8601
}

type NotificationDTO struct {
	ID         uuid.UUID        `json:"id"`
	DocumentID uuid.UUID        `json:"documentId"`
	StageID    *uuid.UUID       `json:"stageId,omitempty"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	CreatedAt  string           `json:"createdAt"` // ISO 8601
}

// UnreadCountDTO represents the count of unread notifications
type UnreadCountDTO struct {
	Count int `json:"count"`
}

type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        UserRole  `json:"role"`
	Unit        string    `json:"unit,omitempty"`
	Rank        string    `json:"rank,omitempty"`
	Designation string    `json:"designation,omitempty"`
	IsActive    bool      `json:"isActive"`
}

// AuthUserDTO represents the authenticated user returned by /auth/me
type AuthUserDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        UserRole  `json:"role"`
	Unit        string    `json:"unit,omitempty"`
	Rank        string    `json:"rank,omitempty"`
	Designation string    `json:"designation,omitempty"`
	Initials    string    `json:"initials"`
	IsAdmin     bool      `json:"isAdmin"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateDocumentRequest struct {
	Title          string         `json:"title" validate:"required,max=300"`
	Purpose        string         `json:"purpose" validate:"required,max=100"`
	OfficeUnit     string         `json:"officeUnit,omitempty" validate:"max=200"`
	CaseReference  string         `json:"caseReference,omitempty" validate:"max=100"`
	Classification Classification `json:"classification,omitempty"`
	Priority       Priority       `json:"priority,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Tags           []string       `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

type AssignStageRequest struct {
	// AssignedToID is the user to assign; null unassigns the stage
	AssignedToID *uuid.UUID `json:"assignedToId"`
}

type UpdateStageStatusRequest struct {
	Status StageStatus `json:"status" validate:"required"`
	// Reason is mandatory when Status is rejected
	Reason  string `json:"reason,omitempty" validate:"max=2000"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type SignStageRequest struct {
	Type SignatureType `json:"type" validate:"required"`
}

type UploadSignedVersionRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

type AddStageCommentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

type DocumentListFilter struct {
	Status         DocumentStatus `json:"status,omitempty"`
	Purpose        string         `json:"purpose,omitempty"`
	Priority       Priority       `json:"priority,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Search         string         `json:"search,omitempty"`
	Tag            string         `json:"tag,omitempty"`
	Page           int            `json:"page,omitempty"`
	PageSize       int            `json:"pageSize,omitempty"`
}
