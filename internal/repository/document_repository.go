package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"gorm.io/gorm"
)

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, document *domain.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

// GetByID returns a document with its stages and uploader preloaded
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var document domain.Document
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Preload("Stages.AssignedTo").
		Preload("UploadedBy").
		First(&document, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}

func (r *DocumentRepository) Update(ctx context.Context, document *domain.Document) error {
	return r.db.WithContext(ctx).Save(document).Error
}

func (r *DocumentRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns documents matching the filter, restricted by the given access
// scope. The scope is the SQL-shaped form of the access control rules and is
// applied before any filter predicates.
func (r *DocumentRepository) List(ctx context.Context, filter *domain.DocumentListFilter, scope func(*gorm.DB) *gorm.DB) ([]domain.Document, int64, error) {
	var documents []domain.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Document{})
	if scope != nil {
		query = scope(query)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Purpose != "" {
		query = query.Where("purpose = ?", filter.Purpose)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Classification != "" {
		query = query.Where("classification = ?", filter.Classification)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR tracking_number ILIKE ? OR case_reference ILIKE ?", like, like, like)
	}
	if filter.Tag != "" {
		query = query.Where("? = ANY(tags)", filter.Tag)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}

	err := query.
		Preload("UploadedBy").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&documents).Error

	return documents, total, err
}

// ListIDs returns the ids of all documents matched by the given access scope.
// A nil scope matches every document.
func (r *DocumentRepository) ListIDs(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&domain.Document{})
	if scope != nil {
		query = scope(query)
	}
	err := query.Pluck("id", &ids).Error
	return ids, err
}

// ListOverdue returns non-terminal documents whose deadline has passed
func (r *DocumentRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Document, error) {
	var documents []domain.Document
	err := r.db.WithContext(ctx).
		Where("deadline IS NOT NULL AND deadline < ?", now).
		Where("status NOT IN ?", []domain.DocumentStatus{domain.DocumentStatusCompleted, domain.DocumentStatusRejected}).
		Find(&documents).Error
	return documents, err
}

// MaxSequenceForPrefix returns the highest tracking-number sequence already
// persisted for a prefix such as "PNP-2026-INC-". Used to rebuild the next
// number from issued documents when the sequence table is unavailable.
func (r *DocumentRepository) MaxSequenceForPrefix(ctx context.Context, prefix string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("tracking_number LIKE ?", prefix+"%").
		Select("COALESCE(MAX(CAST(RIGHT(tracking_number, 4) AS INTEGER)), 0)").
		Scan(&max).Error
	return max, err
}

// Delete removes a document; stages, versions and signatures cascade
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id).Error
}
