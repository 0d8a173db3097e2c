// internal/testutil/testutil.go

// Package testutil holds helpers shared by package tests: a migrated SQLite database in a temp
// directory and a configuration suitable for running services without external systems.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/database"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

// Config returns a development configuration rooted in t.TempDir().
func Config(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Port:        "0",
			MaxUploadMB: 8,
		},
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dir, "test.db"),
			LogLevel:   "silent",
		},
		Session: config.SessionConfig{
			CookieName:  "sap_session",
			Lifetime:    time.Hour,
			IdleTimeout: time.Hour,
			Secret:      "test-session-secret-with-enough-length",
		},
		JWT: config.JWTConfig{
			SecretKey:      "test-secret-key-with-enough-length-0123",
			UnsubscribeTTL: time.Hour,
		},
		Cache: config.CacheConfig{
			NominationTTL: 5 * time.Minute,
			CategoryTTL:   10 * time.Minute,
		},
		Storage: config.StorageConfig{
			LocalPath:  filepath.Join(dir, "uploads"),
			PublicPath: "/uploads",
		},
		Email: config.EmailConfig{
			Provider:   "log",
			FromEmail:  "noreply@example.com",
			FromName:   "SAP Technologies",
			AdminEmail: "admin@example.com",
		},
		Outbox: config.OutboxConfig{
			PollInterval:   time.Second,
			BatchSize:      20,
			MaxAttempts:    5,
			InitialBackoff: 30 * time.Second,
			MaxBackoff:     time.Hour,
			TaskTimeout:    10 * time.Second,
			RetentionDays:  7,
		},
		Certificate: config.CertificateConfig{
			Issuer:    "SAP Technologies",
			Signatory: "Awards Committee",
			AwardName: "SAP Technologies Awards",
		},
		Frontend: config.FrontendConfig{
			BaseURL:        "http://localhost:3000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Admin: config.AdminConfig{
			Email:    "admin@example.com",
			Password: "AdminPass123!",
			Name:     "Test Admin",
		},
		RateLimit: config.RateLimitConfig{
			Enabled: false,
		},
	}
}

// NewTestDB opens a migrated SQLite database that is closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return NewTestDBWithConfig(t, Config(t))
}

func NewTestDBWithConfig(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()

	db, err := database.Initialize(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() {
		database.Close(db)
	})
	return db
}

// CreateCategory inserts an active category with the given name.
func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.AwardCategory {
	t.Helper()

	category := &models.AwardCategory{
		Name:     name,
		Slug:     utils.Slugify(name),
		IsActive: true,
	}
	require.NoError(t, db.Create(category).Error)
	return category
}

// CreateNomination inserts a nomination in the given status.
func CreateNomination(t *testing.T, db *gorm.DB, categoryID uuid.UUID, nominee string, status models.NominationStatus) *models.Nomination {
	t.Helper()

	nomination := &models.Nomination{
		NomineeName:    nominee,
		NomineeCountry: "Uganda",
		NominatorName:  "John",
		NominatorEmail: "john@x.com",
		CategoryID:     categoryID,
		Status:         status,
	}
	require.NoError(t, db.Create(nomination).Error)
	return nomination
}

// CreateUser inserts an active user with the given role and password.
func CreateUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Email:    email,
		Name:     "Test User",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, db.Create(user).Error)
	return user
}
