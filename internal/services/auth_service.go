// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Compared against when the email is unknown so both paths cost one bcrypt check.
var dummyUser = func() *models.User {
	u := &models.User{}
	_ = u.SetPassword("not-a-real-password")
	return u
}()

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
	}
}

// Login checks the credentials of an active back-office user.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	req.Email = utils.NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Find user by email
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = dummyUser.CheckPassword(req.Password)
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, apperr.Persistence("Failed to load user", err)
	}

	// Verify password
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if !user.IsActive {
		return nil, apperr.Forbidden("Account is disabled")
	}

	// Update last login time
	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		logrus.WithError(err).WithField("user_id", user.ID.String()).Warn("Failed to record last login")
	}

	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, apperr.Persistence("Failed to load user", err)
	}
	return &user, nil
}
