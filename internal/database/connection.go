// internal/database/connection.go
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         newLogger(cfg.LogLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && !strings.HasPrefix(cfg.SQLitePath, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	// Connect to database
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool. SQLite allows a single writer.
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", cfg.Driver).Info("Database connection established")
	return db, nil
}

func newLogger(level string) logger.Interface {
	logLevel := logger.Warn
	switch level {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "info":
		logLevel = logger.Info
	}

	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.AwardCategory{},
		&models.Nomination{},
		&models.Vote{},
		&models.OutboxTask{},
		&models.AuditLog{},
		&models.Contact{},
		&models.NewsletterSubscriber{},
		&models.Software{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Nomination listing: status filter plus the sort keys
		"CREATE INDEX IF NOT EXISTS idx_nominations_status_created ON nominations(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_nominations_status_votes ON nominations(status, total_votes DESC)",
		"CREATE INDEX IF NOT EXISTS idx_nominations_category_status ON nominations(category_id, status)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_contacts_status_created ON contacts(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_software_active_order ON software(is_active, sort_order)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

var defaultCategories = []models.AwardCategory{
	{Name: "Innovation Excellence", Description: "Breakthrough products, services or processes that changed how work gets done.", Icon: "lightbulb"},
	{Name: "Leadership Impact", Description: "Leaders who built teams and results that outlast them.", Icon: "compass"},
	{Name: "Community Champion", Description: "Sustained contribution to a community, cause or open ecosystem.", Icon: "users"},
	{Name: "Emerging Talent", Description: "Early-career professionals already making a visible difference.", Icon: "rocket"},
	{Name: "Digital Transformation", Description: "Organisations that modernised operations with technology.", Icon: "cpu"},
}

// Seed initial data
func SeedInitialData(db *gorm.DB, admin config.AdminConfig) error {
	logrus.Info("Seeding initial data...")

	var adminCount int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&adminCount).Error; err != nil {
		return fmt.Errorf("failed to count admin users: %w", err)
	}

	if adminCount == 0 {
		user := &models.User{
			Email:    strings.ToLower(strings.TrimSpace(admin.Email)),
			Name:     admin.Name,
			Role:     models.UserRoleAdmin,
			IsActive: true,
		}

		if err := user.SetPassword(admin.Password); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		logrus.WithField("email", user.Email).Info("Default admin user created")
	}

	var categoryCount int64
	if err := db.Model(&models.AwardCategory{}).Count(&categoryCount).Error; err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}

	if categoryCount == 0 {
		for _, category := range defaultCategories {
			category.Slug = utils.Slugify(category.Name)
			category.IsActive = true
			if err := db.Create(&category).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				logrus.WithError(err).WithField("category", category.Name).Warn("Failed to seed category")
			}
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}
