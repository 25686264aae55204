package domain_test

import (
	"testing"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagesWithStatuses(statuses ...domain.StageStatus) []domain.WorkflowStage {
	stages := make([]domain.WorkflowStage, len(statuses))
	for i, status := range statuses {
		stages[i] = domain.WorkflowStage{
			StageOrder: i + 1,
			Status:     status,
		}
	}
	return stages
}

func TestComputeDocumentStatus(t *testing.T) {
	t.Run("no stages is pending", func(t *testing.T) {
		assert.Equal(t, domain.DocumentStatusPending, domain.ComputeDocumentStatus(nil))
	})

	t.Run("all pending is pending", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusPending, domain.StageStatusPending)
		assert.Equal(t, domain.DocumentStatusPending, domain.ComputeDocumentStatus(stages))
	})

	t.Run("any in progress makes in_progress", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusInProgress, domain.StageStatusPending)
		assert.Equal(t, domain.DocumentStatusInProgress, domain.ComputeDocumentStatus(stages))
	})

	t.Run("completed plus pending makes in_progress", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusPending)
		assert.Equal(t, domain.DocumentStatusInProgress, domain.ComputeDocumentStatus(stages))
	})

	t.Run("all completed makes completed", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusCompleted)
		assert.Equal(t, domain.DocumentStatusCompleted, domain.ComputeDocumentStatus(stages))
	})

	t.Run("any rejection wins regardless of other stages", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusRejected, domain.StageStatusInProgress)
		assert.Equal(t, domain.DocumentStatusRejected, domain.ComputeDocumentStatus(stages))
	})
}

func TestNextPendingStage(t *testing.T) {
	t.Run("returns first pending after the given order", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusPending, domain.StageStatusPending)

		next := domain.NextPendingStage(stages, 1)

		require.NotNil(t, next)
		assert.Equal(t, 2, next.StageOrder)
	})

	t.Run("skips non pending stages", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusInProgress, domain.StageStatusPending)

		next := domain.NextPendingStage(stages, 1)

		require.NotNil(t, next)
		assert.Equal(t, 3, next.StageOrder)
	})

	t.Run("nil when the chain is exhausted", func(t *testing.T) {
		stages := stagesWithStatuses(domain.StageStatusCompleted, domain.StageStatusCompleted)
		assert.Nil(t, domain.NextPendingStage(stages, 0))
	})
}
