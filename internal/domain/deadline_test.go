package domain_test

import (
	"testing"
	"time"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateStageDeadline(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil document deadline yields nil stage deadlines", func(t *testing.T) {
		got := domain.AllocateStageDeadline(nil, 1, 3, domain.PriorityRoutine)
		assert.Nil(t, got)
	})

	t.Run("last stage deadline equals document deadline", func(t *testing.T) {
		deadline := base.AddDate(0, 0, 15)
		got := domain.AllocateStageDeadline(&deadline, 3, 3, domain.PriorityRoutine)

		require.NotNil(t, got)
		assert.Equal(t, deadline, *got)
	})

	t.Run("routine three stage chain spreads five days apart", func(t *testing.T) {
		deadline := base.AddDate(0, 0, 15)

		first := domain.AllocateStageDeadline(&deadline, 1, 3, domain.PriorityRoutine)
		second := domain.AllocateStageDeadline(&deadline, 2, 3, domain.PriorityRoutine)
		third := domain.AllocateStageDeadline(&deadline, 3, 3, domain.PriorityRoutine)

		require.NotNil(t, first)
		require.NotNil(t, second)
		require.NotNil(t, third)
		assert.Equal(t, base.AddDate(0, 0, 5), *first)
		assert.Equal(t, base.AddDate(0, 0, 10), *second)
		assert.Equal(t, base.AddDate(0, 0, 15), *third)
	})

	t.Run("emergency priority pulls stages in by one day each", func(t *testing.T) {
		deadline := base.AddDate(0, 0, 3)

		first := domain.AllocateStageDeadline(&deadline, 1, 3, domain.PriorityEmergency)

		require.NotNil(t, first)
		assert.Equal(t, base.AddDate(0, 0, 1), *first)
	})

	t.Run("unknown priority uses the routine allotment", func(t *testing.T) {
		deadline := base.AddDate(0, 0, 10)

		got := domain.AllocateStageDeadline(&deadline, 1, 2, domain.Priority("whatever"))

		require.NotNil(t, got)
		assert.Equal(t, base.AddDate(0, 0, 5), *got)
	})
}

func TestPriorityDaysPerStage(t *testing.T) {
	assert.Equal(t, 5, domain.PriorityRoutine.DaysPerStage())
	assert.Equal(t, 3, domain.PriorityUrgent.DaysPerStage())
	assert.Equal(t, 2, domain.PriorityPriority.DaysPerStage())
	assert.Equal(t, 1, domain.PriorityEmergency.DaysPerStage())
	assert.Equal(t, 5, domain.Priority("").DaysPerStage())
}
