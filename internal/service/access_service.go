package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// relationship describes how a user stands to a document. It is the second
// key of the access policy table.
type relationship string

const (
	relOwner    relationship = "owner"
	relAssigned relationship = "assigned"
	relNone     relationship = "none"
)

// accessPolicy is the single source of truth for role-based document access.
// A (role, relationship) pair present in the table is allowed with the mapped
// reason; an absent pair is denied. Admins are handled before the lookup.
var accessPolicy = map[domain.UserRole]map[relationship]domain.AccessReason{
	domain.RolePersonnel: {
		relOwner:    domain.AccessDocumentOwner,
		relAssigned: domain.AccessWorkflowAssigned,
	},
	domain.RoleAuthority: {
		relOwner:    domain.AccessDocumentOwner,
		relAssigned: domain.AccessWorkflowAssigned,
	},
}

// denialReason maps a role to the reason reported when the policy table has
// no entry for the user's relationship to the document.
var denialReason = map[domain.UserRole]domain.AccessReason{
	domain.RolePersonnel: domain.AccessDeniedPersonnel,
	domain.RoleAuthority: domain.AccessDeniedNotAssigned,
}

// AccessService evaluates document access for users. It answers point
// queries (may user X see document Y), bulk queries (which document ids may
// user X see) and produces the equivalent SQL-shaped scope for list queries.
type AccessService struct {
	documentRepo *repository.DocumentRepository
	stageRepo    *repository.StageRepository
	logger       *zap.Logger
}

// NewAccessService creates a new AccessService
func NewAccessService(
	documentRepo *repository.DocumentRepository,
	stageRepo *repository.StageRepository,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		documentRepo: documentRepo,
		stageRepo:    stageRepo,
		logger:       logger,
	}
}

// CheckAccess evaluates whether the user may access the given document.
// Only unexpected persistence failures return an error; policy denials come
// back as a decision with Allowed=false and a reason code.
func (s *AccessService) CheckAccess(ctx context.Context, userCtx *auth.UserContext, documentID uuid.UUID) (domain.AccessDecision, error) {
	if userCtx.Role == domain.RoleAdmin {
		return domain.AccessDecision{Allowed: true, Reason: domain.AccessAdmin}, nil
	}

	document, err := s.documentRepo.GetByID(ctx, documentID)
	if err == gorm.ErrRecordNotFound {
		return domain.AccessDecision{Allowed: false, Reason: domain.AccessDeniedNotFound}, nil
	}
	if err != nil {
		return domain.AccessDecision{}, err
	}

	return s.evaluate(userCtx, document), nil
}

// CheckDocumentAccess evaluates policy against an already-loaded document.
// The document must have its stages preloaded.
func (s *AccessService) CheckDocumentAccess(userCtx *auth.UserContext, document *domain.Document) domain.AccessDecision {
	if userCtx.Role == domain.RoleAdmin {
		return domain.AccessDecision{Allowed: true, Reason: domain.AccessAdmin}
	}
	return s.evaluate(userCtx, document)
}

func (s *AccessService) evaluate(userCtx *auth.UserContext, document *domain.Document) domain.AccessDecision {
	rolePolicy, known := accessPolicy[userCtx.Role]
	if !known {
		return domain.AccessDecision{Allowed: false, Reason: domain.AccessDeniedUnknownRole}
	}

	rel := relNone
	if document.UploadedByID == userCtx.UserID {
		rel = relOwner
	} else {
		for _, stage := range document.Stages {
			if stage.AssignedToID != nil && *stage.AssignedToID == userCtx.UserID {
				rel = relAssigned
				break
			}
		}
	}

	if reason, allowed := rolePolicy[rel]; allowed {
		return domain.AccessDecision{Allowed: true, Reason: reason}
	}
	return domain.AccessDecision{Allowed: false, Reason: denialReason[userCtx.Role]}
}

// AccessibleDocumentIDs returns every document id the user may see under the
// same rules as CheckAccess. Admins see everything.
func (s *AccessService) AccessibleDocumentIDs(ctx context.Context, userCtx *auth.UserContext) ([]uuid.UUID, error) {
	return s.documentRepo.ListIDs(ctx, s.Scope(userCtx))
}

// Scope returns the SQL-shaped form of the access rules for list queries.
// A nil return means no restriction (admin).
func (s *AccessService) Scope(userCtx *auth.UserContext) func(*gorm.DB) *gorm.DB {
	switch userCtx.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RolePersonnel, domain.RoleAuthority:
		userID := userCtx.UserID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(
				"documents.uploaded_by_id = ? OR documents.id IN (?)",
				userID,
				db.Session(&gorm.Session{NewDB: true}).
					Model(&domain.WorkflowStage{}).
					Select("document_id").
					Where("assigned_to_id = ?", userID),
			)
		}
	default:
		// Unknown roles see nothing
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("1 = 0")
		}
	}
}

// CheckClassification applies the classification gate on top of role access.
// Both this gate and CheckAccess must pass before a view or download is
// served. Owners and admins always pass.
func (s *AccessService) CheckClassification(userCtx *auth.UserContext, document *domain.Document) bool {
	if userCtx.Role == domain.RoleAdmin || document.UploadedByID == userCtx.UserID {
		return true
	}

	switch document.Classification {
	case domain.ClassificationSecret, domain.ClassificationConfidential:
		return userCtx.Role == domain.RoleAuthority && userCtx.InUnit(document.OfficeUnit)
	case domain.ClassificationRestricted:
		if userCtx.Role == domain.RoleAuthority {
			return true
		}
		return userCtx.Role == domain.RolePersonnel && userCtx.InUnit(document.OfficeUnit)
	default:
		// FOUO and unclassified are open to any authenticated user
		return true
	}
}
