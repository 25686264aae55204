package service_test

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

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

func createDocumentService(t *testing.T, db *gorm.DB) *service.DocumentService {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	access := createAccessService(db)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), zap.NewNop())
	workflow := service.NewWorkflowService(db, repository.NewUserRepository(db), access, store, notifier, zap.NewNop())
	trackingNumbers := service.NewTrackingNumberService(
		repository.NewTrackingSequenceRepository(db), repository.NewDocumentRepository(db), zap.NewNop())

	return service.NewDocumentService(
		db,
		repository.NewDocumentRepository(db),
		repository.NewVersionRepository(db),
		trackingNumbers,
		workflow,
		access,
		store,
		nil,
		zap.NewNop(),
	)
}

func uploadDocument(t *testing.T, svc *service.DocumentService, owner *domain.User, req *domain.CreateDocumentRequest) *domain.DocumentDTO {
	payload := strings.NewReader("%PDF-1.4 test document")
	dto, err := svc.Create(authContext(owner), req, payload, int64(payload.Len()), "report.pdf", "application/pdf")
	require.NoError(t, err)
	return dto
}

func TestDocumentService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	deadline := time.Now().UTC().AddDate(0, 0, 15)

	dto := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{
		Title:    "Q3 Station Incident Summary",
		Purpose:  "Incident Report",
		Priority: domain.PriorityRoutine,
		Deadline: &deadline,
		Tags:     []string{"quarterly", "station-5"},
	})

	assert.Equal(t, fmt.Sprintf("PNP-%d-INC-0001", time.Now().Year()), dto.TrackingNumber)
	assert.Equal(t, domain.DocumentStatusPending, dto.Status)
	assert.Equal(t, "Pending Initial Review", dto.CurrentStageName)
	assert.Equal(t, 1, dto.CurrentVersion)
	assert.False(t, dto.IsUrgent)
	assert.Len(t, dto.Stages, 3)

	var versions []domain.DocumentVersion
	require.NoError(t, db.Where("document_id = ?", dto.ID).Find(&versions).Error)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, "Initial upload", versions[0].Reason)
	assert.False(t, versions[0].IsSignedVersion)

	t.Run("sequence advances per upload", func(t *testing.T) {
		second := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{
			Title:   "Follow-up Incident",
			Purpose: "Incident Report",
		})
		assert.Equal(t, fmt.Sprintf("PNP-%d-INC-0002", time.Now().Year()), second.TrackingNumber)
	})

	t.Run("urgency flag derives from priority", func(t *testing.T) {
		urgent := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{
			Title:    "Flash Order",
			Purpose:  "Operational Order",
			Priority: domain.PriorityEmergency,
		})
		assert.True(t, urgent.IsUrgent)
	})
}

func TestDocumentService_Create_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)
	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	ctx := authContext(owner)

	t.Run("empty payload", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateDocumentRequest{Title: "x", Purpose: "Memorandum"},
			strings.NewReader(""), 0, "empty.pdf", "application/pdf")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("oversized payload", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateDocumentRequest{Title: "x", Purpose: "Memorandum"},
			strings.NewReader("payload"), domain.MaxDocumentUploadBytes+1, "big.pdf", "application/pdf")
		assert.ErrorIs(t, err, service.ErrFileTooLarge)
	})

	t.Run("unknown priority", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateDocumentRequest{Title: "x", Purpose: "Memorandum", Priority: "Whenever"},
			strings.NewReader("payload"), 7, "doc.pdf", "application/pdf")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown classification", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateDocumentRequest{Title: "x", Purpose: "Memorandum", Classification: "Top Secret Plus"},
			strings.NewReader("payload"), 7, "doc.pdf", "application/pdf")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestDocumentService_GetAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	stranger := testutil.CreateTestUser(t, db, "Stranger", domain.RolePersonnel)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)

	memo := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{Title: "Memo A", Purpose: "Memorandum"})
	uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{Title: "Order B", Purpose: "Operational Order"})
	uploadDocument(t, svc, stranger, &domain.CreateDocumentRequest{Title: "Memo C", Purpose: "Memorandum"})

	t.Run("owner reads own document", func(t *testing.T) {
		dto, err := svc.GetByID(authContext(owner), memo.ID)
		require.NoError(t, err)
		assert.Equal(t, memo.TrackingNumber, dto.TrackingNumber)
	})

	t.Run("access denial reads as not found", func(t *testing.T) {
		_, err := svc.GetByID(authContext(stranger), memo.ID)
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})

	t.Run("list is scoped to the caller", func(t *testing.T) {
		resp, err := svc.List(authContext(owner), &domain.DocumentListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)

		resp, err = svc.List(authContext(admin), &domain.DocumentListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Total)
	})

	t.Run("list filters by purpose", func(t *testing.T) {
		resp, err := svc.List(authContext(admin), &domain.DocumentListFilter{Purpose: "Memorandum"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)
	})

	t.Run("classification gate drops unreadable rows", func(t *testing.T) {
		secret := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{
			Title:          "Sensitive Memo",
			Purpose:        "Memorandum",
			OfficeUnit:     "Test Unit",
			Classification: domain.ClassificationSecret,
		})

		// The owner always passes the gate
		_, err := svc.GetByID(authContext(owner), secret.ID)
		require.NoError(t, err)

		// An authority assigned to a stage passes role access but fails
		// the Secret gate when outside the originating unit
		outside := testutil.CreateTestUser(t, db, "Outside Authority", domain.RoleAuthority)
		require.NoError(t, db.Model(&domain.User{}).Where("id = ?", outside.ID).
			Update("unit", "Another Region").Error)
		outside.Unit = "Another Region"

		var stage domain.WorkflowStage
		require.NoError(t, db.Where("document_id = ? AND stage_order = ?", secret.ID, 2).First(&stage).Error)
		require.NoError(t, db.Model(&domain.WorkflowStage{}).Where("id = ?", stage.ID).
			Update("assigned_to_id", outside.ID).Error)

		_, err = svc.GetByID(authContext(outside), secret.ID)
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})
}

func TestDocumentService_Versions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	dto := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{Title: "Memo", Purpose: "Memorandum"})

	versions, err := svc.ListVersions(authContext(owner), dto.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	t.Run("download returns the stored payload", func(t *testing.T) {
		reader, document, err := svc.Download(authContext(owner), dto.ID)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 test document", string(content))
		assert.Equal(t, "report.pdf", document.Filename)
	})

	t.Run("version must belong to the document", func(t *testing.T) {
		other := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{Title: "Other", Purpose: "Memorandum"})
		otherVersions, err := svc.ListVersions(authContext(owner), other.ID)
		require.NoError(t, err)
		require.Len(t, otherVersions, 1)

		_, _, err = svc.DownloadVersion(authContext(owner), dto.ID, otherVersions[0].ID)
		assert.ErrorIs(t, err, service.ErrVersionNotFound)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	admin := testutil.CreateTestUser(t, db, "Admin", domain.RoleAdmin)
	dto := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{Title: "Memo", Purpose: "Memorandum"})

	t.Run("only admins may delete", func(t *testing.T) {
		err := svc.Delete(authContext(owner), dto.ID)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("delete removes the document and its dependents", func(t *testing.T) {
		require.NoError(t, svc.Delete(authContext(admin), dto.ID))

		_, err := svc.GetByID(authContext(admin), dto.ID)
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)

		var stageCount int64
		require.NoError(t, db.Model(&domain.WorkflowStage{}).
			Where("document_id = ?", dto.ID).Count(&stageCount).Error)
		assert.Zero(t, stageCount)
	})
}

func TestDocumentService_LookupCaseReference_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDocumentService(t, db)

	owner := testutil.CreateTestUser(t, db, "Uploader", domain.RolePersonnel)
	dto := uploadDocument(t, svc, owner, &domain.CreateDocumentRequest{
		Title:         "Memo",
		Purpose:       "Memorandum",
		CaseReference: "CC-2026-0142",
	})

	_, err := svc.LookupCaseReference(authContext(owner), dto.ID)
	assert.ErrorIs(t, err, service.ErrRecordsClientNotAvailable)
}
