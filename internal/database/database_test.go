package database_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/database"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The schema must migrate on sqlite as well as postgres; the in-memory test
// harness depends on it. Function defaults like gen_random_uuid() belong in
// the SQL migrations, not in the model tags, or sqlite rejects the DDL.
func TestAutoMigrate_Sqlite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migratetest?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))

	user := &domain.User{
		Email:    "migrate@test.pnp.gov.ph",
		Name:     "Migrate Test",
		Role:     domain.RolePersonnel,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	assert.NotEqual(t, uuid.Nil, user.ID, "BeforeCreate must assign the ID when the database has no default")

	sequence := &domain.TrackingSequence{
		PurposeCode:  "MIG",
		Year:         time.Now().Year(),
		LastSequence: 1,
	}
	require.NoError(t, db.Create(sequence).Error)
	assert.NotEqual(t, uuid.Nil, sequence.ID)
}
