package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
)

// StageRepository handles database operations for workflow stages
type StageRepository struct {
	db *gorm.DB
}

// NewStageRepository creates a new StageRepository
func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// CreateBatch inserts the full ordered stage set for a document in one call
func (r *StageRepository) CreateBatch(ctx context.Context, stages []domain.WorkflowStage) error {
	if len(stages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&stages).Error
}

func (r *StageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStage, error) {
	var stage domain.WorkflowStage
	err := r.db.WithContext(ctx).
		Preload("AssignedTo").
		First(&stage, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.WorkflowStage, error) {
	var stages []domain.WorkflowStage
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("stage_order ASC").
		Find(&stages).Error
	return stages, err
}

func (r *StageRepository) Update(ctx context.Context, stage *domain.WorkflowStage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}

func (r *StageRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&domain.WorkflowStage{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListOverdue returns non-terminal stages whose deadline has passed and whose
// parent document is still active
func (r *StageRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.WorkflowStage, error) {
	var stages []domain.WorkflowStage
	err := r.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = workflow_stages.document_id").
		Where("workflow_stages.deadline IS NOT NULL AND workflow_stages.deadline < ?", now).
		Where("workflow_stages.status NOT IN ?", []domain.StageStatus{domain.StageStatusCompleted, domain.StageStatusRejected}).
		Where("documents.status NOT IN ?", []domain.DocumentStatus{domain.DocumentStatusCompleted, domain.DocumentStatusRejected}).
		Find(&stages).Error
	return stages, err
}
