package service_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/pnp-dms/docflow-api/internal/repository"
	"github.com/pnp-dms/docflow-api/internal/service"
	"github.com/pnp-dms/docflow-api/internal/storage"
	"github.com/pnp-dms/docflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createWorkflowService(t *testing.T, db *gorm.DB) *service.WorkflowService {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), zap.NewNop())

	return service.NewWorkflowService(
		db,
		repository.NewUserRepository(db),
		createAccessService(db),
		store,
		notifier,
		zap.NewNop(),
	)
}

func authContext(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), userContextFor(user))
}

func instantiateStages(t *testing.T, db *gorm.DB, svc *service.WorkflowService, document *domain.Document) []domain.WorkflowStage {
	stages, err := svc.Instantiate(context.Background(), db, document)
	require.NoError(t, err)
	return stages
}

func notificationsOfType(t *testing.T, db *gorm.DB, kind domain.NotificationType) []domain.Notification {
	var notifications []domain.Notification
	require.NoError(t, db.Where("type = ?", kind).Find(&notifications).Error)
	return notifications
}

func TestWorkflowService_Instantiate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	document := testutil.CreateTestDocument(t, db, owner, "Incident Report")

	deadline := time.Now().UTC().Truncate(time.Second).AddDate(0, 0, 15)
	require.NoError(t, db.Model(document).Update("deadline", deadline).Error)
	document.Deadline = &deadline

	stages := instantiateStages(t, db, svc, document)
	require.Len(t, stages, 3)

	assert.Equal(t, "Initial Review", stages[0].Name)
	assert.Equal(t, "Supervisor Approval", stages[1].Name)
	assert.Equal(t, "Final Approval", stages[2].Name)
	assert.Equal(t, domain.RolePersonnel, stages[0].RequiredRole)
	assert.Equal(t, domain.RoleAuthority, stages[1].RequiredRole)

	for i, stage := range stages {
		assert.Equal(t, i+1, stage.StageOrder)
		assert.Equal(t, domain.StageStatusPending, stage.Status)
		assert.True(t, stage.RequiresSignedUpload)
	}

	// Routine priority distributes 5 days per stage backwards from the deadline
	base := deadline.AddDate(0, 0, -15)
	require.NotNil(t, stages[0].Deadline)
	assert.WithinDuration(t, base.AddDate(0, 0, 5), *stages[0].Deadline, time.Second)
	assert.WithinDuration(t, base.AddDate(0, 0, 10), *stages[1].Deadline, time.Second)
	assert.WithinDuration(t, deadline, *stages[2].Deadline, time.Second)

	var reloaded domain.Document
	require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
	assert.Equal(t, "Pending Initial Review", reloaded.CurrentStageName)
}

func TestWorkflowService_Instantiate_NoDeadline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")

	stages := instantiateStages(t, db, svc, document)
	require.Len(t, stages, 2)
	for _, stage := range stages {
		assert.Nil(t, stage.Deadline)
	}
}

func TestWorkflowService_AssignStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	reviewer := testutil.CreateTestUser(t, db, "Reviewer", domain.RolePersonnel)
	authority := testutil.CreateTestUser(t, db, "Authority", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Incident Report")
	stages := instantiateStages(t, db, svc, document)

	t.Run("assigning moves stage to in_progress and notifies assignee", func(t *testing.T) {
		dto, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: &reviewer.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.StageStatusInProgress, dto.Status)
		require.NotNil(t, dto.AssignedToID)
		assert.Equal(t, reviewer.ID, *dto.AssignedToID)

		assigned := notificationsOfType(t, db, domain.NotificationStageAssigned)
		require.Len(t, assigned, 1)
		assert.Equal(t, reviewer.ID, assigned[0].UserID)
		assert.Contains(t, assigned[0].Message, document.TrackingNumber)

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, domain.DocumentStatusInProgress, reloaded.Status)
	})

	t.Run("unassigning reverts stage and document to pending", func(t *testing.T) {
		dto, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: nil})
		require.NoError(t, err)
		assert.Equal(t, domain.StageStatusPending, dto.Status)
		assert.Nil(t, dto.AssignedToID)

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, domain.DocumentStatusPending, reloaded.Status)
	})

	t.Run("assignee role must match required role", func(t *testing.T) {
		_, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: &authority.ID})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		ghost := testutil.CreateTestUser(t, db, "Ghost", domain.RolePersonnel)
		require.NoError(t, db.Delete(&domain.User{}, "id = ?", ghost.ID).Error)

		_, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: &ghost.ID})
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})

	t.Run("personnel cannot assign stages", func(t *testing.T) {
		_, err := svc.AssignStage(authContext(reviewer), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: &reviewer.ID})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("authority can manage assignments", func(t *testing.T) {
		dto, err := svc.AssignStage(authContext(authority), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: &reviewer.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.StageStatusInProgress, dto.Status)

		dto, err = svc.AssignStage(authContext(authority), document.ID, stages[0].ID,
			&domain.AssignStageRequest{AssignedToID: nil})
		require.NoError(t, err)
		assert.Equal(t, domain.StageStatusPending, dto.Status)
	})
}

func TestWorkflowService_SignedUploadGate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	reviewer := testutil.CreateTestUser(t, db, "Reviewer", domain.RolePersonnel)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Incident Report")
	stages := instantiateStages(t, db, svc, document)

	_, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
		&domain.AssignStageRequest{AssignedToID: &reviewer.ID})
	require.NoError(t, err)

	// Explicit completion is refused until the signed version is uploaded
	_, err = svc.UpdateStageStatus(authContext(reviewer), document.ID, stages[0].ID,
		&domain.UpdateStageStatusRequest{Status: domain.StageStatusCompleted})
	assert.ErrorIs(t, err, service.ErrSignedUploadRequired)

	payload := strings.NewReader("%PDF-1.4 signed scan")
	version, err := svc.UploadSignedVersion(authContext(reviewer), document.ID, stages[0].ID,
		payload, int64(payload.Len()), "signed.pdf", "application/pdf", "Wet signed copy")
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	assert.True(t, version.IsSignedVersion)

	var stage domain.WorkflowStage
	require.NoError(t, db.First(&stage, "id = ?", stages[0].ID).Error)
	assert.Equal(t, domain.StageStatusCompleted, stage.Status)
	assert.True(t, stage.SignedVersionUploaded)
	require.NotNil(t, stage.CompletedAt)
}

func TestWorkflowService_UploadSignedVersion_Flow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	reviewer := testutil.CreateTestUser(t, db, "Reviewer", domain.RolePersonnel)
	supervisor := testutil.CreateTestUser(t, db, "Supervisor", domain.RoleAuthority)
	approver := testutil.CreateTestUser(t, db, "Approver", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Incident Report")
	stages := instantiateStages(t, db, svc, document)

	adminCtx := authContext(admin)
	_, err := svc.AssignStage(adminCtx, document.ID, stages[0].ID,
		&domain.AssignStageRequest{AssignedToID: &reviewer.ID})
	require.NoError(t, err)

	upload := func(ctx context.Context, stage *domain.WorkflowStage) error {
		payload := strings.NewReader("%PDF-1.4 signed scan")
		_, err := svc.UploadSignedVersion(ctx, document.ID, stage.ID,
			payload, int64(payload.Len()), "signed.pdf", "application/pdf", "")
		return err
	}

	t.Run("first completion surfaces the next stage", func(t *testing.T) {
		require.NoError(t, upload(authContext(reviewer), &stages[0]))

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, domain.DocumentStatusInProgress, reloaded.Status)
		assert.Equal(t, "Pending Supervisor Approval", reloaded.CurrentStageName)
		assert.Equal(t, 2, reloaded.CurrentVersion)

		// Stage 2 has no assignee yet, so nobody is told it is ready
		assert.Empty(t, notificationsOfType(t, db, domain.NotificationStageReady))
	})

	t.Run("only the assignee or an admin may upload", func(t *testing.T) {
		_, err := svc.AssignStage(adminCtx, document.ID, stages[1].ID,
			&domain.AssignStageRequest{AssignedToID: &supervisor.ID})
		require.NoError(t, err)

		err = upload(authContext(reviewer), &stages[1])
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("completing every stage completes the document", func(t *testing.T) {
		// An assignee recorded on a still-pending stage is notified when it
		// becomes the next actionable stage
		require.NoError(t, db.Model(&domain.WorkflowStage{}).
			Where("id = ?", stages[2].ID).
			Update("assigned_to_id", approver.ID).Error)

		require.NoError(t, upload(authContext(supervisor), &stages[1]))

		ready := notificationsOfType(t, db, domain.NotificationStageReady)
		require.Len(t, ready, 1)
		assert.Equal(t, approver.ID, ready[0].UserID)

		require.NoError(t, upload(authContext(approver), &stages[2]))

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, domain.DocumentStatusCompleted, reloaded.Status)
		assert.Equal(t, "Final Approval Completed", reloaded.CurrentStageName)
		assert.Equal(t, 4, reloaded.CurrentVersion)

		completed := notificationsOfType(t, db, domain.NotificationDocumentCompleted)
		require.Len(t, completed, 1)
		assert.Equal(t, owner.ID, completed[0].UserID)
	})

	t.Run("terminal document refuses further transitions", func(t *testing.T) {
		err := upload(authContext(approver), &stages[2])
		assert.ErrorIs(t, err, service.ErrDocumentTerminal)
	})
}

func TestWorkflowService_Rejection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	authority := testutil.CreateTestUser(t, db, "Authority", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")
	stages := instantiateStages(t, db, svc, document)

	_, err := svc.AssignStage(authContext(admin), document.ID, stages[1].ID,
		&domain.AssignStageRequest{AssignedToID: &authority.ID})
	require.NoError(t, err)

	t.Run("rejection requires a reason", func(t *testing.T) {
		_, err := svc.UpdateStageStatus(authContext(authority), document.ID, stages[1].ID,
			&domain.UpdateStageStatusRequest{Status: domain.StageStatusRejected})
		assert.ErrorIs(t, err, service.ErrRejectionReasonRequired)
	})

	t.Run("rejection is terminal for the document", func(t *testing.T) {
		dto, err := svc.UpdateStageStatus(authContext(authority), document.ID, stages[1].ID,
			&domain.UpdateStageStatusRequest{
				Status: domain.StageStatusRejected,
				Reason: "Missing releasing authority endorsement",
			})
		require.NoError(t, err)
		assert.Equal(t, domain.StageStatusRejected, dto.Status)
		assert.Equal(t, "Missing releasing authority endorsement", dto.RejectionReason)

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, domain.DocumentStatusRejected, reloaded.Status)
		assert.Equal(t, "Rejected at Releasing Authority Confirmation", reloaded.CurrentStageName)

		rejected := notificationsOfType(t, db, domain.NotificationDocumentRejected)
		require.Len(t, rejected, 1)
		assert.Equal(t, owner.ID, rejected[0].UserID)
		assert.Contains(t, rejected[0].Message, "Missing releasing authority endorsement")
	})

	t.Run("rejected stage is no longer actionable", func(t *testing.T) {
		_, err := svc.UpdateStageStatus(authContext(authority), document.ID, stages[0].ID,
			&domain.UpdateStageStatusRequest{Status: domain.StageStatusRejected, Reason: "late"})
		assert.ErrorIs(t, err, service.ErrDocumentTerminal)
	})
}

func TestWorkflowService_SignStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	signer := testutil.CreateTestUser(t, db, "Signer", domain.RolePersonnel)
	outsider := testutil.CreateTestUser(t, db, "Outsider", domain.RoleAuthority)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")
	stages := instantiateStages(t, db, svc, document)

	_, err := svc.AssignStage(authContext(admin), document.ID, stages[0].ID,
		&domain.AssignStageRequest{AssignedToID: &signer.ID})
	require.NoError(t, err)

	sign := func(ctx context.Context, sigType domain.SignatureType) (*domain.SignatureDTO, error) {
		payload := strings.NewReader("png signature bytes")
		return svc.SignStage(ctx, document.ID, stages[0].ID, sigType,
			payload, int64(payload.Len()), "signature.png", "image/png", "10.0.0.7")
	}

	t.Run("unknown signature type", func(t *testing.T) {
		_, err := sign(authContext(signer), domain.SignatureType("typed"))
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("non-assignee cannot sign an assigned stage", func(t *testing.T) {
		_, err := sign(authContext(outsider), domain.SignatureTypeCanvas)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("assignee signature completes the stage", func(t *testing.T) {
		dto, err := sign(authContext(signer), domain.SignatureTypeCanvas)
		require.NoError(t, err)
		assert.Equal(t, signer.ID, dto.SignerID)
		assert.Equal(t, domain.SignatureTypeCanvas, dto.Type)
		assert.Equal(t, "10.0.0.7", dto.SignerIP)

		var stage domain.WorkflowStage
		require.NoError(t, db.First(&stage, "id = ?", stages[0].ID).Error)
		assert.Equal(t, domain.StageStatusCompleted, stage.Status)

		var reloaded domain.Document
		require.NoError(t, db.First(&reloaded, "id = ?", document.ID).Error)
		assert.Equal(t, "Pending Releasing Authority Confirmation", reloaded.CurrentStageName)
	})

	t.Run("signing a completed stage is refused", func(t *testing.T) {
		_, err := sign(authContext(signer), domain.SignatureTypeUpload)
		assert.ErrorIs(t, err, service.ErrStageNotActionable)
	})

	t.Run("stored signature image can be downloaded", func(t *testing.T) {
		signatures, err := svc.ListStageSignatures(authContext(owner), document.ID, stages[0].ID)
		require.NoError(t, err)
		require.Len(t, signatures, 1)

		reader, signature, err := svc.DownloadSignature(authContext(owner), document.ID, stages[0].ID, signatures[0].ID)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "png signature bytes", string(content))
		assert.Equal(t, signer.ID, signature.SignerID)

		// Signature must belong to the named stage
		_, _, err = svc.DownloadSignature(authContext(owner), document.ID, stages[1].ID, signatures[0].ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("duplicate signature on an open stage", func(t *testing.T) {
		_, err := svc.AssignStage(authContext(admin), document.ID, stages[1].ID,
			&domain.AssignStageRequest{AssignedToID: &outsider.ID})
		require.NoError(t, err)

		payload := strings.NewReader("png signature bytes")
		_, err = svc.SignStage(authContext(admin), document.ID, stages[1].ID, domain.SignatureTypeUpload,
			payload, int64(payload.Len()), "signature.png", "image/png", "")
		require.NoError(t, err)

		payload = strings.NewReader("png signature bytes")
		_, err = svc.SignStage(authContext(admin), document.ID, stages[1].ID, domain.SignatureTypeUpload,
			payload, int64(payload.Len()), "signature.png", "image/png", "")
		assert.ErrorIs(t, err, service.ErrAlreadySigned)
	})
}

func TestWorkflowService_Comments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createWorkflowService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	stranger := testutil.CreateTestUser(t, db, "Stranger", domain.RolePersonnel)

	document := testutil.CreateTestDocument(t, db, owner, "Memorandum")
	stages := instantiateStages(t, db, svc, document)

	t.Run("owner can comment and list", func(t *testing.T) {
		created, err := svc.AddStageComment(authContext(owner), document.ID, stages[0].ID,
			&domain.AddStageCommentRequest{Body: "Please expedite"})
		require.NoError(t, err)
		assert.Equal(t, "Please expedite", created.Body)

		comments, err := svc.ListStageComments(authContext(owner), document.ID, stages[0].ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, domain.StageCommentKindUser, comments[0].Kind)
	})

	t.Run("inaccessible document reads as not found", func(t *testing.T) {
		_, err := svc.AddStageComment(authContext(stranger), document.ID, stages[0].ID,
			&domain.AddStageCommentRequest{Body: "hello"})
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)

		_, err = svc.ListStageComments(authContext(stranger), document.ID, stages[0].ID)
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})

	t.Run("stage must belong to the document", func(t *testing.T) {
		other := testutil.CreateTestDocument(t, db, owner, "Memorandum")
		otherStages := instantiateStages(t, db, svc, other)

		_, err := svc.ListStageComments(authContext(owner), document.ID, otherStages[0].ID)
		assert.ErrorIs(t, err, service.ErrStageNotFound)
	})
}
