package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/service"
	"github.com/pnp-dms/docflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createAccessService(db *gorm.DB) *service.AccessService {
	return service.NewAccessService(
		repository.NewDocumentRepository(db),
		repository.NewStageRepository(db),
		zap.NewNop(),
	)
}

func userContextFor(user *domain.User) *auth.UserContext {
	return &auth.UserContext{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Unit:   user.Unit,
	}
}

func TestAccessService_CheckAccess(t *testing.T) {
	db := testutil.SetupMemoryDB(t)
	svc := createAccessService(db)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, db, "Owner", domain.RolePersonnel)
	otherPersonnel := testutil.CreateTestUser(t, db, "Other Personnel", domain.RolePersonnel)
	assignedPersonnel := testutil.CreateTestUser(t, db, "Assigned Personnel", domain.RolePersonnel)
	assignedAuthority := testutil.CreateTestUser(t, db, "Assigned Authority", domain.RoleAuthority)
	otherAuthority := testutil.CreateTestUser(t, db, "Other Authority", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")
	stage := &domain.WorkflowStage{
		DocumentID:   document.ID,
		Name:         "Releasing Authority Confirmation",
		StageOrder:   2,
		RequiredRole: domain.RoleAuthority,
		AssignedToID: &assignedAuthority.ID,
		Status:       domain.StageStatusPending,
	}
	require.NoError(t, db.Create(stage).Error)

	reviewStage := &domain.WorkflowStage{
		DocumentID:   document.ID,
		Name:         "Originator Sign",
		StageOrder:   1,
		RequiredRole: domain.RolePersonnel,
		AssignedToID: &assignedPersonnel.ID,
		Status:       domain.StageStatusInProgress,
	}
	require.NoError(t, db.Create(reviewStage).Error)

	t.Run("admin sees every document", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(admin), document.ID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, domain.AccessAdmin, decision.Reason)
	})

	t.Run("personnel sees own document", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(owner), document.ID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, domain.AccessDocumentOwner, decision.Reason)
	})

	t.Run("personnel denied on another user's document", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(otherPersonnel), document.ID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, domain.AccessDeniedPersonnel, decision.Reason)
	})

	t.Run("personnel assigned to a stage sees the document", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(assignedPersonnel), document.ID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, domain.AccessWorkflowAssigned, decision.Reason)
	})

	t.Run("authority assigned to a stage sees the document", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(assignedAuthority), document.ID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, domain.AccessWorkflowAssigned, decision.Reason)
	})

	t.Run("authority without assignment is denied", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(otherAuthority), document.ID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, domain.AccessDeniedNotAssigned, decision.Reason)
	})

	t.Run("missing document reads as not found", func(t *testing.T) {
		decision, err := svc.CheckAccess(ctx, userContextFor(owner), uuid.New())
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, domain.AccessDeniedNotFound, decision.Reason)
	})

	t.Run("unknown role is denied", func(t *testing.T) {
		stranger := userContextFor(owner)
		stranger.UserID = uuid.New()
		stranger.Role = domain.UserRole("visitor")

		decision, err := svc.CheckAccess(ctx, stranger, document.ID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, domain.AccessDeniedUnknownRole, decision.Reason)
	})
}

func TestAccessService_AccessibleDocumentIDs(t *testing.T) {
	db := testutil.SetupMemoryDB(t)
	svc := createAccessService(db)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, db, "Owner", domain.RolePersonnel)
	authority := testutil.CreateTestUser(t, db, "Authority", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	owned := testutil.CreateTestDocument(t, db, owner, "Memorandum")
	assigned := testutil.CreateTestDocument(t, db, admin, "Incident Report")
	unrelated := testutil.CreateTestDocument(t, db, admin, "Operational Order")

	stage := &domain.WorkflowStage{
		DocumentID:   assigned.ID,
		Name:         "Operations Review",
		StageOrder:   2,
		RequiredRole: domain.RoleAuthority,
		AssignedToID: &authority.ID,
		Status:       domain.StageStatusPending,
	}
	require.NoError(t, db.Create(stage).Error)

	reviewer := testutil.CreateTestUser(t, db, "Reviewer", domain.RolePersonnel)
	reviewStage := &domain.WorkflowStage{
		DocumentID:   unrelated.ID,
		Name:         "Initial Review",
		StageOrder:   1,
		RequiredRole: domain.RolePersonnel,
		AssignedToID: &reviewer.ID,
		Status:       domain.StageStatusInProgress,
	}
	require.NoError(t, db.Create(reviewStage).Error)

	t.Run("admin scope covers everything", func(t *testing.T) {
		ids, err := svc.AccessibleDocumentIDs(ctx, userContextFor(admin))
		require.NoError(t, err)
		assert.Len(t, ids, 3)
	})

	t.Run("personnel scope is own uploads plus assignments", func(t *testing.T) {
		ids, err := svc.AccessibleDocumentIDs(ctx, userContextFor(owner))
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, owned.ID, ids[0])

		ids, err = svc.AccessibleDocumentIDs(ctx, userContextFor(reviewer))
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, unrelated.ID, ids[0])
	})

	t.Run("authority scope is own uploads plus assignments", func(t *testing.T) {
		ids, err := svc.AccessibleDocumentIDs(ctx, userContextFor(authority))
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, assigned.ID, ids[0])
		assert.NotContains(t, ids, unrelated.ID)
	})
}

func TestAccessService_CheckClassification(t *testing.T) {
	db := testutil.SetupMemoryDB(t)
	svc := createAccessService(db)

	owner := testutil.CreateTestUser(t, db, "Owner", domain.RolePersonnel)
	document := testutil.CreateTestDocument(t, db, owner, "Incident Report")
	document.OfficeUnit = "Intelligence Division"

	authoritySameUnit := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAuthority, Unit: "Intelligence Division"}
	authorityOtherUnit := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAuthority, Unit: "Logistics"}
	personnelSameUnit := &auth.UserContext{UserID: uuid.New(), Role: domain.RolePersonnel, Unit: "Intelligence Division"}
	admin := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("owner always passes", func(t *testing.T) {
		document.Classification = domain.ClassificationSecret
		assert.True(t, svc.CheckClassification(userContextFor(owner), document))
	})

	t.Run("admin always passes", func(t *testing.T) {
		document.Classification = domain.ClassificationSecret
		assert.True(t, svc.CheckClassification(admin, document))
	})

	t.Run("secret requires authority in the same unit", func(t *testing.T) {
		document.Classification = domain.ClassificationSecret
		assert.True(t, svc.CheckClassification(authoritySameUnit, document))
		assert.False(t, svc.CheckClassification(authorityOtherUnit, document))
		assert.False(t, svc.CheckClassification(personnelSameUnit, document))
	})

	t.Run("restricted allows any authority or same-unit personnel", func(t *testing.T) {
		document.Classification = domain.ClassificationRestricted
		assert.True(t, svc.CheckClassification(authorityOtherUnit, document))
		assert.True(t, svc.CheckClassification(personnelSameUnit, document))
	})

	t.Run("fouo is open to authenticated users", func(t *testing.T) {
		document.Classification = domain.ClassificationFOUO
		assert.True(t, svc.CheckClassification(personnelSameUnit, document))
		assert.True(t, svc.CheckClassification(authorityOtherUnit, document))
	})
}
