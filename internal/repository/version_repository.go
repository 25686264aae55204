package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
)

// VersionRepository handles database operations for document versions
type VersionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) Create(ctx context.Context, version *domain.DocumentVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DocumentVersion, error) {
	var version domain.DocumentVersion
	err := r.db.WithContext(ctx).
		Preload("UploadedBy").
		First(&version, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *VersionRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVersion, error) {
	var versions []domain.DocumentVersion
	err := r.db.WithContext(ctx).
		Preload("UploadedBy").
		Where("document_id = ?", documentID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}
