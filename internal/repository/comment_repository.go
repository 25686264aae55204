package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository handles database operations for stage comments
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.StageComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepository) ListByStage(ctx context.Context, stageID uuid.UUID) ([]domain.StageComment, error) {
	var comments []domain.StageComment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("stage_id = ?", stageID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// HasEscalationComment reports whether an escalation comment was already
// attached to the stage. The escalation sweep uses this to stay idempotent.
func (r *CommentRepository) HasEscalationComment(ctx context.Context, stageID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.StageComment{}).
		Where("stage_id = ? AND kind = ?", stageID, domain.StageCommentKindEscalation).
		Count(&count).Error
	return count > 0, err
}
