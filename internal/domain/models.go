package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database does not (e.g. sqlite in tests)
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Upload size ceilings enforced by the workflow engine.
// Content validation beyond size is out of scope.
const (
	MaxDocumentUploadBytes = 50 << 20
	MaxSignatureImageBytes = 5 << 20
)

// UserRole represents the role of a portal user
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RolePersonnel UserRole = "personnel"
	RoleAuthority UserRole = "authority"
)

// IsValid checks if the UserRole is a valid enum value
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RolePersonnel, RoleAuthority:
		return true
	}
	return false
}

// User represents a portal user
type User struct {
	BaseModel
	Email       string   `gorm:"type:varchar(255);not null;unique"`
	Name        string   `gorm:"type:varchar(200);not null"`
	Role        UserRole `gorm:"type:varchar(50);not null;default:'personnel';index"`
	Unit        string   `gorm:"type:varchar(200);index"`
	Rank        string   `gorm:"type:varchar(100)"`
	Designation string   `gorm:"type:varchar(200)"`
	IsActive    bool     `gorm:"not null;default:true;column:is_active"`
}

// Priority represents the handling priority of a document
type Priority string

const (
	PriorityRoutine   Priority = "Routine"
	PriorityUrgent    Priority = "Urgent"
	PriorityPriority  Priority = "Priority"
	PriorityEmergency Priority = "Emergency"
)

// IsValid checks if the Priority is a valid enum value
func (p Priority) IsValid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityPriority, PriorityEmergency:
		return true
	}
	return false
}

// DaysPerStage returns the number of days allotted to each workflow stage
// for this priority. Unrecognized values fall back to the Routine allotment.
func (p Priority) DaysPerStage() int {
	switch p {
	case PriorityEmergency:
		return 1
	case PriorityPriority:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 5
	}
}

// IsUrgent reports whether the priority marks the document as urgent
func (p Priority) IsUrgent() bool {
	return p == PriorityUrgent || p == PriorityPriority || p == PriorityEmergency
}

// Classification represents a document sensitivity tier
type Classification string

const (
	ClassificationFOUO         Classification = "For Official Use Only"
	ClassificationRestricted   Classification = "Restricted"
	ClassificationConfidential Classification = "Confidential"
	ClassificationSecret       Classification = "Secret"
)

// Level returns the numeric sensitivity tier, higher is more sensitive.
// Unclassified documents are level 0.
func (c Classification) Level() int {
	switch c {
	case ClassificationFOUO:
		return 1
	case ClassificationRestricted:
		return 2
	case ClassificationConfidential:
		return 3
	case ClassificationSecret:
		return 4
	}
	return 0
}

// IsValid checks if the Classification is a valid enum value
func (c Classification) IsValid() bool {
	return c == "" || c.Level() > 0
}

// DocumentStatus represents the overall status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusInProgress DocumentStatus = "in_progress"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusRejected   DocumentStatus = "rejected"
)

// IsTerminal reports whether no further workflow processing applies
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusRejected
}

// StageStatus represents the status of a single workflow stage
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusRejected   StageStatus = "rejected"
)

// IsValid checks if the StageStatus is a valid enum value
func (s StageStatus) IsValid() bool {
	switch s {
	case StageStatusPending, StageStatusInProgress, StageStatusCompleted, StageStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the stage can no longer change status
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusCompleted || s == StageStatusRejected
}

// Document represents an uploaded document routed through an approval workflow
type Document struct {
	BaseModel
	TrackingNumber   string            `gorm:"type:varchar(50);not null;unique;index;column:tracking_number"`
	Title            string            `gorm:"type:varchar(300);not null;index"`
	Purpose          string            `gorm:"type:varchar(100);not null;index"`
	OfficeUnit       string            `gorm:"type:varchar(200);column:office_unit;index"`
	CaseReference    string            `gorm:"type:varchar(100);column:case_reference"`
	Classification   Classification    `gorm:"type:varchar(50);index"`
	Priority         Priority          `gorm:"type:varchar(50);not null;default:'Routine';index"`
	Deadline         *time.Time        `gorm:"index"`
	Notes            string            `gorm:"type:text"`
	IsUrgent         bool              `gorm:"not null;default:false;column:is_urgent"`
	CurrentVersion   int               `gorm:"not null;default:1;column:current_version"`
	CurrentStageName string            `gorm:"type:varchar(200);column:current_stage_name"`
	Status           DocumentStatus    `gorm:"type:varchar(50);not null;default:'pending';index"`
	Tags             pq.StringArray    `gorm:"type:text[]"`
	Filename         string            `gorm:"type:varchar(255);not null"`
	ContentType      string            `gorm:"type:varchar(100);not null;column:content_type"`
	Size             int64             `gorm:"not null"`
	StoragePath      string            `gorm:"type:varchar(500);not null;column:storage_path"`
	UploadedByID     uuid.UUID         `gorm:"type:uuid;not null;index;column:uploaded_by_id"`
	UploadedBy       *User             `gorm:"foreignKey:UploadedByID"`
	Stages           []WorkflowStage   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Versions         []DocumentVersion `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// WorkflowStage represents one step in a document's approval pipeline.
// Stages are created as a full ordered set at upload time; membership never
// changes afterwards, only status, assignment and flags.
type WorkflowStage struct {
	BaseModel
	DocumentID            uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_stage_doc_order;column:document_id"`
	Document              *Document      `gorm:"foreignKey:DocumentID"`
	Name                  string         `gorm:"type:varchar(200);not null"`
	StageOrder            int            `gorm:"not null;uniqueIndex:idx_stage_doc_order;column:stage_order"`
	RequiredRole          UserRole       `gorm:"type:varchar(50);not null;column:required_role"`
	AssignedToID          *uuid.UUID     `gorm:"type:uuid;index;column:assigned_to_id"`
	AssignedTo            *User          `gorm:"foreignKey:AssignedToID"`
	Status                StageStatus    `gorm:"type:varchar(50);not null;default:'pending';index"`
	Deadline              *time.Time     `gorm:"index"`
	CompletedAt           *time.Time     `gorm:"column:completed_at"`
	RejectionReason       string         `gorm:"type:text;column:rejection_reason"`
	RequiresSignedUpload  bool           `gorm:"not null;default:true;column:requires_signed_upload"`
	SignedVersionUploaded bool           `gorm:"not null;default:false;column:signed_version_uploaded"`
	Comments              []StageComment `gorm:"foreignKey:StageID;constraint:OnDelete:CASCADE"`
}

// StageCommentKind distinguishes user comments from system-attached ones
type StageCommentKind string

const (
	StageCommentKindUser       StageCommentKind = "user"
	StageCommentKindEscalation StageCommentKind = "escalation"
)

// StageComment represents a free-text comment attached to a workflow stage
type StageComment struct {
	BaseModel
	StageID  uuid.UUID        `gorm:"type:uuid;not null;index;column:stage_id"`
	AuthorID *uuid.UUID       `gorm:"type:uuid;column:author_id"`
	Author   *User            `gorm:"foreignKey:AuthorID"`
	Kind     StageCommentKind `gorm:"type:varchar(50);not null;default:'user'"`
	Body     string           `gorm:"type:text;not null"`
}

// DocumentVersion represents one stored revision of a document's file payload
type DocumentVersion struct {
	BaseModel
	DocumentID      uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_version_doc_number;column:document_id"`
	StageID         *uuid.UUID `gorm:"type:uuid;column:stage_id"`
	VersionNumber   int        `gorm:"not null;uniqueIndex:idx_version_doc_number;column:version_number"`
	Filename        string     `gorm:"type:varchar(255);not null"`
	ContentType     string     `gorm:"type:varchar(100);not null;column:content_type"`
	Size            int64      `gorm:"not null"`
	StoragePath     string     `gorm:"type:varchar(500);not null;column:storage_path"`
	UploadedByID    uuid.UUID  `gorm:"type:uuid;not null;column:uploaded_by_id"`
	UploadedBy      *User      `gorm:"foreignKey:UploadedByID"`
	Reason          string     `gorm:"type:text"`
	IsSignedVersion bool       `gorm:"not null;default:false;column:is_signed_version"`
}

// SignatureType represents how a signature was captured
type SignatureType string

const (
	SignatureTypeCanvas SignatureType = "canvas"
	SignatureTypeUpload SignatureType = "upload"
)

// IsValid checks if the SignatureType is a valid enum value
func (t SignatureType) IsValid() bool {
	return t == SignatureTypeCanvas || t == SignatureTypeUpload
}

// Signature represents a digital signature recorded against a workflow stage.
// At most one signature exists per (stage, signer) pair.
type Signature struct {
	BaseModel
	StageID     uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_signature_stage_signer;column:stage_id"`
	SignerID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_signature_stage_signer;column:signer_id"`
	Signer      *User         `gorm:"foreignKey:SignerID"`
	Type        SignatureType `gorm:"type:varchar(50);not null"`
	StoragePath string        `gorm:"type:varchar(500);not null;column:storage_path"`
	Size        int64         `gorm:"not null"`
	SignerIP    string        `gorm:"type:varchar(50);column:signer_ip"`
	SignedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP;column:signed_at"`
}

// NotificationType represents the type of workflow notification
type NotificationType string

const (
	NotificationStageAssigned     NotificationType = "stage_assigned"
	NotificationStageReady        NotificationType = "stage_ready"
	NotificationStageOverdue      NotificationType = "stage_overdue"
	NotificationStageEscalated    NotificationType = "stage_escalated"
	NotificationDocumentCompleted NotificationType = "document_completed"
	NotificationDocumentRejected  NotificationType = "document_rejected"
	NotificationDocumentOverdue   NotificationType = "document_overdue"
)

// IsValid checks if the NotificationType is a valid enum value
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationStageAssigned, NotificationStageReady, NotificationStageOverdue,
		NotificationStageEscalated, NotificationDocumentCompleted,
		NotificationDocumentRejected, NotificationDocumentOverdue:
		return true
	}
	return false
}

// Notification represents a user notification emitted by the workflow engine
type Notification struct {
	BaseModel
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index;column:user_id"`
	DocumentID uuid.UUID        `gorm:"type:uuid;not null;index;column:document_id"`
	StageID    *uuid.UUID       `gorm:"type:uuid;column:stage_id"`
	Type       NotificationType `gorm:"type:varchar(50);not null"`
	Message    string           `gorm:"type:varchar(500);not null"`
	Read       bool             `gorm:"column:read;not null;default:false;index"`
	ReadAt     *time.Time
}

// TrackingSequence holds the last issued tracking number sequence
// for a purpose code within a year
type TrackingSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	PurposeCode  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_tracking_code_year;column:purpose_code"`
	Year         int       `gorm:"not null;uniqueIndex:idx_tracking_code_year"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database does not
func (t *TrackingSequence) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
