package repository

import (
	"context"
	"fmt"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackingSequenceRepository handles database operations for tracking number
// sequences. One sequence row exists per purpose-code/year combination so that
// tracking numbers stay unique and gap-free within a year.
type TrackingSequenceRepository struct {
	db *gorm.DB
}

// NewTrackingSequenceRepository creates a new TrackingSequenceRepository
func NewTrackingSequenceRepository(db *gorm.DB) *TrackingSequenceRepository {
	return &TrackingSequenceRepository{db: db}
}

// NextSequence atomically retrieves and increments the sequence for a
// purpose-code/year. It uses SELECT FOR UPDATE so that concurrent uploads
// never receive the same number. If no sequence exists yet, it creates one
// starting at 1.
func (r *TrackingSequenceRepository) NextSequence(ctx context.Context, purposeCode string, year int) (int, error) {
	var seq domain.TrackingSequence
	var nextSeq int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("purpose_code = ? AND year = ?", purposeCode, year).
			First(&seq)

		if result.Error == gorm.ErrRecordNotFound {
			seq = domain.TrackingSequence{
				PurposeCode:  purposeCode,
				Year:         year,
				LastSequence: 1,
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create tracking sequence: %w", err)
			}
			nextSeq = 1
		} else if result.Error != nil {
			return fmt.Errorf("failed to get tracking sequence: %w", result.Error)
		} else {
			nextSeq = seq.LastSequence + 1
			if err := tx.Model(&seq).Update("last_sequence", nextSeq).Error; err != nil {
				return fmt.Errorf("failed to update tracking sequence: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return nextSeq, nil
}

// CurrentSequence retrieves the current sequence value without incrementing.
// Returns 0 if no sequence exists for the purpose-code/year.
func (r *TrackingSequenceRepository) CurrentSequence(ctx context.Context, purposeCode string, year int) (int, error) {
	var seq domain.TrackingSequence
	result := r.db.WithContext(ctx).
		Where("purpose_code = ? AND year = ?", purposeCode, year).
		First(&seq)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get tracking sequence: %w", result.Error)
	}

	return seq.LastSequence, nil
}
