// Package testutil provides shared test database helpers.
package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/database"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memoryDBCounter int64

// SetupTestDB creates a connection to the test PostgreSQL database.
// It uses environment variables or falls back to docker-compose defaults.
// Tests that exercise row locking (SELECT FOR UPDATE) need this harness.
func SetupTestDB(t *testing.T) *gorm.DB {
	host := getEnvOrDefault("DATABASE_HOST", "localhost")
	port := getEnvOrDefault("DATABASE_PORT", "5432")
	user := getEnvOrDefault("DATABASE_USER", "docflow_user")
	password := getEnvOrDefault("DATABASE_PASSWORD", "docflow_password")
	dbname := getEnvOrDefault("DATABASE_NAME", "docflow_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database. Ensure PostgreSQL is running.")

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		CleanupTestData(t, db)
	})

	return db
}

// SetupMemoryDB creates an isolated in-memory sqlite database.
// Suitable for tests that never take row locks.
func SetupMemoryDB(t *testing.T) *gorm.DB {
	n := atomic.AddInt64(&memoryDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))

	return db
}

// CleanupTestData removes test rows from all tables in FK order
func CleanupTestData(t *testing.T, db *gorm.DB) {
	tables := []string{
		"notifications",
		"signatures",
		"document_versions",
		"stage_comments",
		"workflow_stages",
		"documents",
		"tracking_sequences",
		"users",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id IS NOT NULL", table)).Error; err != nil {
			t.Logf("Note: Could not clean table %s: %v", table, err)
		}
	}
}

// CreateTestUser creates an active user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, name string, role domain.UserRole) *domain.User {
	user := &domain.User{
		Email:    fmt.Sprintf("%s@test.pnp.gov.ph", uuid.New().String()[:8]),
		Name:     name,
		Role:     role,
		Unit:     "Test Unit",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestDocument creates a bare document row without workflow stages
func CreateTestDocument(t *testing.T, db *gorm.DB, uploader *domain.User, purpose string) *domain.Document {
	document := &domain.Document{
		TrackingNumber: fmt.Sprintf("PNP-%d-TST-%s", time.Now().Year(), uuid.New().String()[:8]),
		Title:          "Test Document",
		Purpose:        purpose,
		Priority:       domain.PriorityRoutine,
		Status:         domain.DocumentStatusPending,
		Filename:       "test.pdf",
		ContentType:    "application/pdf",
		Size:           1024,
		StoragePath:    "aa/bb/test.pdf",
		UploadedByID:   uploader.ID,
	}
	require.NoError(t, db.Create(document).Error)
	return document
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
