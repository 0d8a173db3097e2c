// internal/services/software_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type SoftwareService struct {
	db *gorm.DB
}

type SoftwareRequest struct {
	Name        string   `json:"name" validate:"required,not_blank,max=120"`
	Slug        string   `json:"slug" validate:"max=140"`
	Summary     string   `json:"summary" validate:"max=300"`
	Description string   `json:"description" validate:"max=20000"`
	Category    string   `json:"category" validate:"max=60"`
	Features    []string `json:"features" validate:"max=50,dive,max=200"`
	Price       string   `json:"price" validate:"max=60"`
	WebsiteURL  string   `json:"website_url" validate:"omitempty,url,max=500"`
	ImageURL    string   `json:"image_url" validate:"omitempty,max=500"`
	IsActive    *bool    `json:"is_active"`
	SortOrder   int      `json:"sort_order"`
}

func NewSoftwareService(db *gorm.DB) *SoftwareService {
	return &SoftwareService{db: db}
}

// ListActive returns active entries ordered by sort order then name, optionally by category.
func (s *SoftwareService) ListActive(ctx context.Context, category string) ([]models.Software, error) {
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if category = strings.TrimSpace(category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}

	items := []models.Software{}
	if err := query.Order("sort_order ASC").Order("name ASC").Find(&items).Error; err != nil {
		return nil, apperr.Persistence("Failed to load software", err)
	}
	return items, nil
}

// GetBySlug returns an active entry with its description rendered to sanitized HTML.
func (s *SoftwareService) GetBySlug(ctx context.Context, slug string) (*models.Software, error) {
	var item models.Software
	if err := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", strings.ToLower(slug), true).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Software")
		}
		return nil, apperr.Persistence("Failed to load software", err)
	}

	item.DescriptionHTML = utils.RenderMarkdown(item.Description)
	return &item, nil
}

func (s *SoftwareService) Create(ctx context.Context, req *SoftwareRequest) (*models.Software, error) {
	if err := s.prepare(req); err != nil {
		return nil, err
	}

	item := &models.Software{IsActive: true}
	applySoftwareRequest(item, req)

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("Slug %q is already in use", item.Slug)
		}
		return nil, apperr.Persistence("Failed to create software", err)
	}
	return item, nil
}

func (s *SoftwareService) Update(ctx context.Context, id uuid.UUID, req *SoftwareRequest) (*models.Software, error) {
	if err := s.prepare(req); err != nil {
		return nil, err
	}

	var item models.Software
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Software")
		}
		return nil, apperr.Persistence("Failed to load software", err)
	}

	applySoftwareRequest(&item, req)
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("Slug %q is already in use", item.Slug)
		}
		return nil, apperr.Persistence("Failed to update software", err)
	}
	return &item, nil
}

func (s *SoftwareService) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Unscoped().Delete(&models.Software{}, "id = ?", id)
	if result.Error != nil {
		return apperr.Persistence("Failed to delete software", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("Software")
	}
	return nil
}

func (s *SoftwareService) prepare(req *SoftwareRequest) error {
	// Description is markdown and is sanitized when rendered
	utils.SanitizeFields(&req.Name, &req.Summary, &req.Category, &req.Price)
	for i := range req.Features {
		req.Features[i] = utils.SanitizeText(req.Features[i])
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	if req.Slug == "" {
		req.Slug = req.Name
	}
	req.Slug = utils.Slugify(req.Slug)
	if req.Slug == "" {
		return apperr.Validation("slug must contain letters or digits")
	}
	return nil
}

func applySoftwareRequest(item *models.Software, req *SoftwareRequest) {
	item.Name = req.Name
	item.Slug = req.Slug
	item.Summary = req.Summary
	item.Description = req.Description
	item.Category = req.Category
	item.Features = models.StringList(req.Features)
	item.Price = req.Price
	item.WebsiteURL = req.WebsiteURL
	item.ImageURL = req.ImageURL
	item.SortOrder = req.SortOrder
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
}
