package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
)

// SignatureRepository handles database operations for stage signatures
type SignatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository creates a new SignatureRepository
func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func (r *SignatureRepository) Create(ctx context.Context, signature *domain.Signature) error {
	return r.db.WithContext(ctx).Create(signature).Error
}

func (r *SignatureRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Signature, error) {
	var signature domain.Signature
	err := r.db.WithContext(ctx).
		Preload("Signer").
		First(&signature, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &signature, nil
}

// ExistsForSigner reports whether the signer already signed the stage
func (r *SignatureRepository) ExistsForSigner(ctx context.Context, stageID, signerID uuid.UUID) (bool, error) {
	var signature domain.Signature
	err := r.db.WithContext(ctx).
		Where("stage_id = ? AND signer_id = ?", stageID, signerID).
		First(&signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SignatureRepository) ListByStage(ctx context.Context, stageID uuid.UUID) ([]domain.Signature, error) {
	var signatures []domain.Signature
	err := r.db.WithContext(ctx).
		Preload("Signer").
		Where("stage_id = ?", stageID).
		Order("signed_at ASC").
		Find(&signatures).Error
	return signatures, err
}
