// internal/services/contact_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type ContactService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,not_blank,max=120"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"max=40"`
	Company string `json:"company" validate:"max=160"`
	Subject string `json:"subject" validate:"required,not_blank,max=200"`
	Message string `json:"message" validate:"required,not_blank,max=5000"`
}

type ContactFilter struct {
	utils.PaginationParams
	Status *models.ContactStatus `json:"status,omitempty"`
}

func NewContactService(db *gorm.DB, notificationService *NotificationService) *ContactService {
	return &ContactService{
		db:                  db,
		notificationService: notificationService,
	}
}

func (s *ContactService) Create(ctx context.Context, req *ContactRequest, ip string) (*models.Contact, error) {
	utils.SanitizeFields(&req.Name, &req.Phone, &req.Company, &req.Subject, &req.Message)
	req.Email = utils.NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Subject:   req.Subject,
		Message:   req.Message,
		Status:    models.ContactStatusNew,
		IPAddress: ip,
	}
	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, apperr.Persistence("Failed to save message", err)
	}

	s.notificationService.SendContactReceived(ctx, contact)
	return contact, nil
}

func (s *ContactService) List(ctx context.Context, filter *ContactFilter) ([]models.Contact, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Contact{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count messages", err)
	}

	contacts := []models.Contact{}
	query = utils.ApplySort(query, filter.PaginationParams, []utils.SortField{
		{Name: "createdAt", Column: "created_at"},
		{Name: "name", Column: "name"},
	})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&contacts).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to load messages", err)
	}
	return contacts, total, nil
}

func (s *ContactService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ContactStatus) (*models.Contact, error) {
	if err := utils.ValidateVar(string(status), "required,contact_status"); err != nil {
		return nil, apperr.Validation("status must be one of new, read, replied, archived")
	}

	result := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return nil, apperr.Persistence("Failed to update message", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("Message")
	}

	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, apperr.Persistence("Failed to load message", err)
	}
	return &contact, nil
}
