package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/service"
	"github.com/pnp-dms/docflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createNotificationService(db *gorm.DB) *service.NotificationService {
	return service.NewNotificationService(repository.NewNotificationRepository(db), zap.NewNop())
}

func TestNotificationService_Inbox(t *testing.T) {
	db := testutil.SetupMemoryDB(t)
	svc := createNotificationService(db)

	owner := testutil.CreateTestUser(t, db, "Owner", domain.RolePersonnel)
	other := testutil.CreateTestUser(t, db, "Other", domain.RolePersonnel)
	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(context.Background(), owner.ID, document.ID, nil,
			domain.NotificationStageAssigned, fmt.Sprintf("assignment %d", i)))
	}
	require.NoError(t, svc.Notify(context.Background(), owner.ID, document.ID, nil,
		domain.NotificationDocumentCompleted, "all done"))
	require.NoError(t, svc.Notify(context.Background(), other.ID, document.ID, nil,
		domain.NotificationStageAssigned, "not yours"))

	ownerCtx := authContext(owner)

	t.Run("requires user context", func(t *testing.T) {
		_, err := svc.GetForCurrentUser(context.Background(), 1, 20, false, "")
		assert.ErrorIs(t, err, service.ErrUserContextRequired)
	})

	t.Run("lists only the current user's notifications", func(t *testing.T) {
		resp, err := svc.GetForCurrentUser(ownerCtx, 1, 20, false, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), resp.Total)
		assert.Equal(t, 1, resp.TotalPages)
	})

	t.Run("filters by type", func(t *testing.T) {
		resp, err := svc.GetForCurrentUser(ownerCtx, 1, 20, false, string(domain.NotificationDocumentCompleted))
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("paginates", func(t *testing.T) {
		resp, err := svc.GetForCurrentUser(ownerCtx, 1, 3, false, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), resp.Total)
		assert.Equal(t, 2, resp.TotalPages)
		dtos, ok := resp.Data.([]domain.NotificationDTO)
		require.True(t, ok)
		assert.Len(t, dtos, 3)
	})

	t.Run("clamps out-of-range paging inputs", func(t *testing.T) {
		resp, err := svc.GetForCurrentUser(ownerCtx, 0, -5, false, "")
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 20, resp.PageSize)
	})
}

func TestNotificationService_ReadState(t *testing.T) {
	db := testutil.SetupMemoryDB(t)
	svc := createNotificationService(db)

	owner := testutil.CreateTestUser(t, db, "Owner", domain.RolePersonnel)
	other := testutil.CreateTestUser(t, db, "Other", domain.RolePersonnel)
	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")

	require.NoError(t, svc.Notify(context.Background(), owner.ID, document.ID, nil,
		domain.NotificationStageAssigned, "first"))
	require.NoError(t, svc.Notify(context.Background(), owner.ID, document.ID, nil,
		domain.NotificationStageReady, "second"))

	var first domain.Notification
	require.NoError(t, db.Where("user_id = ? AND message = ?", owner.ID, "first").First(&first).Error)

	ownerCtx := authContext(owner)
	otherCtx := authContext(other)

	t.Run("unread count", func(t *testing.T) {
		count, err := svc.GetUnreadCount(ownerCtx)
		require.NoError(t, err)
		assert.Equal(t, 2, count.Count)
	})

	t.Run("only the owner can read or mark", func(t *testing.T) {
		_, err := svc.GetByID(otherCtx, first.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotOwned)

		err = svc.MarkAsRead(otherCtx, first.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotOwned)
	})

	t.Run("mark as read is idempotent", func(t *testing.T) {
		require.NoError(t, svc.MarkAsRead(ownerCtx, first.ID))
		require.NoError(t, svc.MarkAsRead(ownerCtx, first.ID))

		count, err := svc.GetUnreadCount(ownerCtx)
		require.NoError(t, err)
		assert.Equal(t, 1, count.Count)

		dto, err := svc.GetByID(ownerCtx, first.ID)
		require.NoError(t, err)
		assert.True(t, dto.Read)
	})

	t.Run("mark all as read", func(t *testing.T) {
		require.NoError(t, svc.MarkAllAsReadForUser(ownerCtx))

		count, err := svc.GetUnreadCount(ownerCtx)
		require.NoError(t, err)
		assert.Equal(t, 0, count.Count)
	})

	t.Run("delete removes an owned notification", func(t *testing.T) {
		var second domain.Notification
		require.NoError(t, db.Where("user_id = ? AND message = ?", owner.ID, "second").First(&second).Error)

		err := svc.Delete(otherCtx, second.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotOwned)

		require.NoError(t, svc.Delete(ownerCtx, second.ID))
		_, err = svc.GetByID(ownerCtx, second.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)
	})

	t.Run("missing notification", func(t *testing.T) {
		missing := testutil.CreateTestDocument(t, db, owner, "Memorandum")
		_, err := svc.GetByID(ownerCtx, missing.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)
	})
}
