package domain_test

import (
	"testing"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTemplate(t *testing.T) {
	t.Run("incident report has three stages", func(t *testing.T) {
		tpl := domain.GetTemplate("Incident Report")

		assert.Equal(t, "INC", tpl.Code)
		require.Len(t, tpl.Stages, 3)
		assert.Equal(t, "Initial Review", tpl.Stages[0].Name)
		assert.Equal(t, domain.RolePersonnel, tpl.Stages[0].RequiredRole)
		assert.Equal(t, "Final Approval", tpl.Stages[2].Name)
		assert.Equal(t, domain.RoleAuthority, tpl.Stages[2].RequiredRole)
	})

	t.Run("personnel action has four stages", func(t *testing.T) {
		tpl := domain.GetTemplate("Personnel Action")

		assert.Equal(t, "PER", tpl.Code)
		assert.Len(t, tpl.Stages, 4)
	})

	t.Run("unknown purpose falls back to general correspondence", func(t *testing.T) {
		tpl := domain.GetTemplate("Unheard Of Purpose")

		assert.Equal(t, domain.DefaultPurpose, tpl.Purpose)
		assert.Equal(t, "GEN", tpl.Code)
		assert.Len(t, tpl.Stages, 2)
	})

	t.Run("empty purpose falls back to general correspondence", func(t *testing.T) {
		tpl := domain.GetTemplate("")

		assert.Equal(t, domain.DefaultPurpose, tpl.Purpose)
	})

	t.Run("stage orders are sequential from one", func(t *testing.T) {
		for _, purpose := range domain.KnownPurposes() {
			tpl := domain.GetTemplate(purpose)
			for i, stage := range tpl.Stages {
				assert.Equal(t, i+1, stage.Order, "purpose %s stage %d", purpose, i)
			}
		}
	})
}

func TestPurposeCode(t *testing.T) {
	assert.Equal(t, "INC", domain.PurposeCode("Incident Report"))
	assert.Equal(t, "OPS", domain.PurposeCode("Operational Order"))
	assert.Equal(t, "MEM", domain.PurposeCode("Memorandum"))
	assert.Equal(t, "GEN", domain.PurposeCode("anything else"))
}
