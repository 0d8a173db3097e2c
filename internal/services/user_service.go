// internal/services/user_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

// UserService manages back-office accounts.
type UserService struct {
	db *gorm.DB
}

type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	Name     string          `json:"name" validate:"required,not_blank,max=120"`
	Password string          `json:"password" validate:"required,min=10,max=72"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin editor"`
}

type UpdateUserRequest struct {
	Name     *string          `json:"name" validate:"omitempty,not_blank,max=120"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=admin editor"`
	IsActive *bool            `json:"is_active"`
	Password *string          `json:"password" validate:"omitempty,min=10,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10,max=72"`
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		db: db,
	}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, apperr.Persistence("Failed to load users", err)
	}
	return users, nil
}

func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	req.Email = utils.NormalizeEmail(req.Email)
	utils.SanitizeFields(&req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperr.Persistence("Failed to hash password", err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("A user with email %s already exists", req.Email)
		}
		return nil, apperr.Persistence("Failed to create user", err)
	}

	return user, nil
}

// Update edits an account. The last active admin can be neither demoted nor deactivated.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*models.User, error) {
	if req.Name != nil {
		utils.SanitizeFields(req.Name)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("User")
			}
			return apperr.Persistence("Failed to load user", err)
		}

		losesAdmin := user.IsAdmin() && user.IsActive &&
			((req.Role != nil && *req.Role != models.UserRoleAdmin) || (req.IsActive != nil && !*req.IsActive))
		if losesAdmin {
			var admins int64
			if err := tx.Model(&models.User{}).
				Where("role = ? AND is_active = ? AND id <> ?", models.UserRoleAdmin, true, user.ID).
				Count(&admins).Error; err != nil {
				return apperr.Persistence("Failed to count admins", err)
			}
			if admins == 0 {
				return apperr.Conflict("At least one active admin is required")
			}
		}

		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Role != nil {
			user.Role = *req.Role
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.Password != nil {
			if err := user.SetPassword(*req.Password); err != nil {
				return apperr.Persistence("Failed to hash password", err)
			}
		}

		if err := tx.Save(&user).Error; err != nil {
			return apperr.Persistence("Failed to update user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, req *ChangePasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("User")
		}
		return apperr.Persistence("Failed to load user", err)
	}

	// Verify password
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		return apperr.Validation("Current password is incorrect")
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperr.Persistence("Failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("password_hash", user.PasswordHash).Error; err != nil {
		return apperr.Persistence("Failed to update password", err)
	}
	return nil
}
