package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"go.uber.org/zap"
)

// TrackingNumberService generates document tracking numbers in the format
// PNP-<year>-<purpose code>-<zero-padded sequence>, e.g. PNP-2026-INC-0042.
// Sequences are per purpose-code and year and come from an atomically
// incremented sequence row, so concurrent uploads never collide.
type TrackingNumberService struct {
	sequenceRepo *repository.TrackingSequenceRepository
	documentRepo *repository.DocumentRepository
	logger       *zap.Logger
}

// NewTrackingNumberService creates a new TrackingNumberService
func NewTrackingNumberService(
	sequenceRepo *repository.TrackingSequenceRepository,
	documentRepo *repository.DocumentRepository,
	logger *zap.Logger,
) *TrackingNumberService {
	return &TrackingNumberService{
		sequenceRepo: sequenceRepo,
		documentRepo: documentRepo,
		logger:       logger,
	}
}

// Generate returns the next tracking number for the given purpose. If the
// sequence lookup fails it rebuilds the number from the highest sequence
// already issued to a document, and only when that also fails falls back to a
// timestamp suffix, so an upload is never blocked by the sequence table.
func (s *TrackingNumberService) Generate(ctx context.Context, purpose string) string {
	code := domain.PurposeCode(purpose)
	year := time.Now().Year()

	seq, err := s.sequenceRepo.NextSequence(ctx, code, year)
	if err == nil {
		return fmt.Sprintf("PNP-%d-%s-%04d", year, code, seq)
	}
	s.logger.Warn("tracking sequence lookup failed, rebuilding from issued numbers",
		zap.String("purpose_code", code),
		zap.Int("year", year),
		zap.Error(err))

	prefix := fmt.Sprintf("PNP-%d-%s-", year, code)
	if max, rebuildErr := s.documentRepo.MaxSequenceForPrefix(ctx, prefix); rebuildErr == nil {
		return fmt.Sprintf("%s%04d", prefix, max+1)
	}

	return fmt.Sprintf("%s%d", prefix, time.Now().UnixMilli()%1000000)
}
