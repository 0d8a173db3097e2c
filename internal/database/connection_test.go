package database

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Initialize(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "migrate.db"),
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	return db
}

func TestRunMigrations_SQLite(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, RunMigrations(db))
	// Idempotent on an existing schema.
	require.NoError(t, RunMigrations(db))

	tables := []interface{}{
		&models.User{}, &models.AwardCategory{}, &models.Nomination{}, &models.Vote{},
		&models.OutboxTask{}, &models.AuditLog{}, &models.Contact{},
		&models.NewsletterSubscriber{}, &models.Software{},
	}
	for _, table := range tables {
		assert.True(t, db.Migrator().HasTable(table), "%T", table)
	}
}

func TestRunMigrations_CustomColumnTypesRoundTrip(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, RunMigrations(db))

	resourceID := uuid.New()
	entry := models.AuditLog{
		Action:       "PATCH /api/awards/nominations/:id/status",
		ResourceType: "nominations",
		ResourceID:   &resourceID,
		NewValues:    models.JSONB{"status": "approved"},
		Status:       200,
	}
	require.NoError(t, db.Create(&entry).Error)

	var storedEntry models.AuditLog
	require.NoError(t, db.First(&storedEntry, "id = ?", entry.ID).Error)
	assert.Equal(t, "approved", storedEntry.NewValues["status"])

	software := models.Software{
		Name:     "Inventory Pro",
		Slug:     "inventory-pro",
		Features: models.StringList{"Barcode scanning", "Multi-branch, stock"},
		IsActive: true,
	}
	require.NoError(t, db.Create(&software).Error)

	var storedSoftware models.Software
	require.NoError(t, db.First(&storedSoftware, "id = ?", software.ID).Error)
	assert.Equal(t, software.Features, storedSoftware.Features)
}

func TestSeedInitialData_CreatesAdminOnce(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, RunMigrations(db))

	admin := config.AdminConfig{Email: "admin@example.com", Password: "AdminPass123!", Name: "Admin"}
	require.NoError(t, SeedInitialData(db, admin))
	require.NoError(t, SeedInitialData(db, admin))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", admin.Email).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
