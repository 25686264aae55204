package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepResult summarizes one escalation sweep run
type SweepResult struct {
	DocumentsBumped int
	StagesNotified  int
	StagesEscalated int
}

// EscalationService runs the periodic overdue scan. Overdue documents get a
// priority bump to Urgent, overdue stage assignees get notices, and stages
// overdue by a day or more soft-push the next pending stage's actor. The
// sweep takes the same per-document row lock as the transition engine, so it
// never races a completion. Re-running the sweep on unchanged state is a
// no-op apart from stage_overdue notices: the bump only fires once and an
// already-escalated stage is never escalated again.
type EscalationService struct {
	db       *gorm.DB
	notifier Notifier
	logger   *zap.Logger
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(db *gorm.DB, notifier Notifier, logger *zap.Logger) *EscalationService {
	return &EscalationService{
		db:       db,
		notifier: notifier,
		logger:   logger,
	}
}

// Sweep scans for overdue documents and stages as of the given instant
func (s *EscalationService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	if err := s.sweepDocuments(ctx, now, result); err != nil {
		return result, err
	}
	if err := s.sweepStages(ctx, now, result); err != nil {
		return result, err
	}

	s.logger.Info("escalation sweep completed",
		zap.Int("documents_bumped", result.DocumentsBumped),
		zap.Int("stages_notified", result.StagesNotified),
		zap.Int("stages_escalated", result.StagesEscalated))

	return result, nil
}

func (s *EscalationService) sweepDocuments(ctx context.Context, now time.Time, result *SweepResult) error {
	overdue, err := repository.NewDocumentRepository(s.db).ListOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue documents: %w", err)
	}

	for i := range overdue {
		documentID := overdue[i].ID
		var pending []pendingNotification

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			document, err := lockDocument(ctx, tx, documentID)
			if err != nil {
				return err
			}
			// Re-validate under the lock; the document may have finished or
			// been bumped since the scan
			if document.Status.IsTerminal() {
				return nil
			}
			if document.Deadline == nil || !document.Deadline.Before(now) {
				return nil
			}
			if document.Priority == domain.PriorityUrgent || document.Priority == domain.PriorityEmergency {
				return nil
			}

			if err := tx.WithContext(ctx).Model(&domain.Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
				"priority":  domain.PriorityUrgent,
				"is_urgent": true,
			}).Error; err != nil {
				return fmt.Errorf("failed to bump document priority: %w", err)
			}

			pending = append(pending, pendingNotification{
				userID:     document.UploadedByID,
				documentID: documentID,
				kind:       domain.NotificationDocumentOverdue,
				message:    fmt.Sprintf("Document %s is past its deadline and has been raised to Urgent priority", document.TrackingNumber),
			})
			result.DocumentsBumped++
			return nil
		})
		if err != nil {
			s.logger.Error("failed to escalate overdue document",
				zap.String("document_id", documentID.String()), zap.Error(err))
			continue
		}

		s.deliver(ctx, pending)
	}
	return nil
}

func (s *EscalationService) sweepStages(ctx context.Context, now time.Time, result *SweepResult) error {
	overdue, err := repository.NewStageRepository(s.db).ListOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue stages: %w", err)
	}

	for i := range overdue {
		stageID := overdue[i].ID
		documentID := overdue[i].DocumentID
		var pending []pendingNotification

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			document, err := lockDocument(ctx, tx, documentID)
			if err != nil {
				return err
			}
			if document.Status.IsTerminal() {
				return nil
			}

			stage, err := repository.NewStageRepository(tx).GetByID(ctx, stageID)
			if err != nil {
				return fmt.Errorf("failed to load stage: %w", err)
			}
			if stage.Status.IsTerminal() || stage.Deadline == nil || !stage.Deadline.Before(now) {
				return nil
			}

			if stage.AssignedToID != nil {
				pending = append(pending, pendingNotification{
					userID:     *stage.AssignedToID,
					documentID: documentID,
					stageID:    &stage.ID,
					kind:       domain.NotificationStageOverdue,
					message:    fmt.Sprintf("Stage %q of document %s is past its deadline", stage.Name, document.TrackingNumber),
				})
				result.StagesNotified++
			}

			if now.Sub(*stage.Deadline) < 24*time.Hour {
				return nil
			}

			// Soft push: pre-alert the immediate next pending stage without
			// touching anyone's status
			stages, err := repository.NewStageRepository(tx).ListByDocument(ctx, documentID)
			if err != nil {
				return fmt.Errorf("failed to load sibling stages: %w", err)
			}
			var next *domain.WorkflowStage
			for j := range stages {
				if stages[j].StageOrder == stage.StageOrder+1 {
					next = &stages[j]
					break
				}
			}
			if next == nil || next.Status != domain.StageStatusPending {
				return nil
			}

			commentRepo := repository.NewCommentRepository(tx)
			alreadyEscalated, err := commentRepo.HasEscalationComment(ctx, stage.ID)
			if err != nil {
				return fmt.Errorf("failed to check escalation state: %w", err)
			}
			if alreadyEscalated {
				return nil
			}

			overdueDays := int(now.Sub(*stage.Deadline).Hours() / 24)
			comment := &domain.StageComment{
				StageID: stage.ID,
				Kind:    domain.StageCommentKindEscalation,
				Body:    fmt.Sprintf("Stage overdue by %d day(s); next stage has been pre-alerted", overdueDays),
			}
			if err := commentRepo.Create(ctx, comment); err != nil {
				return fmt.Errorf("failed to attach escalation comment: %w", err)
			}

			if next.AssignedToID != nil {
				pending = append(pending, pendingNotification{
					userID:     *next.AssignedToID,
					documentID: documentID,
					stageID:    &next.ID,
					kind:       domain.NotificationStageEscalated,
					message:    fmt.Sprintf("Stage %q of document %s is overdue; stage %q will be ready for you next", stage.Name, document.TrackingNumber, next.Name),
				})
			}
			result.StagesEscalated++
			return nil
		})
		if err != nil {
			s.logger.Error("failed to escalate overdue stage",
				zap.String("stage_id", stageID.String()), zap.Error(err))
			continue
		}

		s.deliver(ctx, pending)
	}
	return nil
}

func (s *EscalationService) deliver(ctx context.Context, pending []pendingNotification) {
	for _, n := range pending {
		if err := s.notifier.Notify(ctx, n.userID, n.documentID, n.stageID, n.kind, n.message); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("user_id", n.userID.String()),
				zap.String("type", string(n.kind)),
				zap.Error(err))
		}
	}
}
