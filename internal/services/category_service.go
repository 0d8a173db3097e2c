// internal/services/category_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type CategoryService struct {
	db     *gorm.DB
	cache  cache.Cache
	config *config.Config
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,not_blank,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Icon        string `json:"icon" validate:"max=100"`
	IsActive    *bool  `json:"is_active"`
}

func NewCategoryService(db *gorm.DB, c cache.Cache, config *config.Config) *CategoryService {
	return &CategoryService{
		db:     db,
		cache:  c,
		config: config,
	}
}

// ListActive returns active categories ordered by name, cached under a single key.
func (s *CategoryService) ListActive(ctx context.Context) ([]models.AwardCategory, error) {
	var categories []models.AwardCategory
	if hit, err := cache.GetJSON(ctx, s.cache, categoryListKey, &categories); err != nil {
		logCacheError(err, categoryListKey)
	} else if hit {
		return categories, nil
	}

	categories = []models.AwardCategory{}
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperr.Persistence("Failed to load categories", err)
	}

	if err := cache.SetJSON(ctx, s.cache, categoryListKey, categories, s.config.Cache.CategoryTTL); err != nil {
		logCacheError(err, categoryListKey)
	}
	return categories, nil
}

// Get finds an active category by id or slug.
func (s *CategoryService) Get(ctx context.Context, idOrSlug string) (*models.AwardCategory, error) {
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if id, err := uuid.Parse(idOrSlug); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", strings.ToLower(idOrSlug))
	}

	var category models.AwardCategory
	if err := query.First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Category")
		}
		return nil, apperr.Persistence("Failed to load category", err)
	}
	return &category, nil
}

// AdminList returns every category with its nomination count.
func (s *CategoryService) AdminList(ctx context.Context) ([]models.AwardCategory, error) {
	categories := []models.AwardCategory{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperr.Persistence("Failed to load categories", err)
	}

	var counts []struct {
		CategoryID uuid.UUID
		Count      int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Nomination{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").
		Scan(&counts).Error; err != nil {
		return nil, apperr.Persistence("Failed to count nominations", err)
	}

	byCategory := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byCategory[c.CategoryID] = c.Count
	}
	for i := range categories {
		categories[i].NominationCount = byCategory[categories[i].ID]
	}

	return categories, nil
}

func (s *CategoryService) Create(ctx context.Context, req *CategoryRequest) (*models.AwardCategory, error) {
	if err := s.prepare(req); err != nil {
		return nil, err
	}

	category := &models.AwardCategory{
		Name:        req.Name,
		Slug:        utils.Slugify(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if category.Slug == "" {
		return nil, apperr.Validation("name must contain letters or digits")
	}

	if err := s.ensureUniqueName(ctx, category.Name, category.Slug, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("A category with this name already exists")
		}
		return nil, apperr.Persistence("Failed to create category", err)
	}

	invalidateCategoryList(ctx, s.cache)
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, req *CategoryRequest) (*models.AwardCategory, error) {
	if err := s.prepare(req); err != nil {
		return nil, err
	}

	var category models.AwardCategory
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Category")
		}
		return nil, apperr.Persistence("Failed to load category", err)
	}

	slug := utils.Slugify(req.Name)
	if slug == "" {
		return nil, apperr.Validation("name must contain letters or digits")
	}
	if err := s.ensureUniqueName(ctx, req.Name, slug, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":        req.Name,
		"slug":        slug,
		"description": req.Description,
		"icon":        req.Icon,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := s.db.WithContext(ctx).Model(&category).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("A category with this name already exists")
		}
		return nil, apperr.Persistence("Failed to update category", err)
	}

	// Nomination lists embed the category
	invalidateCategoryList(ctx, s.cache)
	invalidateNominationLists(ctx, s.cache)

	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, apperr.Persistence("Failed to load category", err)
	}
	return &category, nil
}

// Delete removes a category that no nomination references.
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.AwardCategory
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Category")
			}
			return apperr.Persistence("Failed to load category", err)
		}

		var count int64
		if err := tx.Model(&models.Nomination{}).Unscoped().Where("category_id = ?", id).Count(&count).Error; err != nil {
			return apperr.Persistence("Failed to count nominations", err)
		}
		if count > 0 {
			return apperr.Conflict("Cannot delete category with %d existing nomination(s)", count)
		}

		if err := tx.Unscoped().Delete(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperr.Conflict("Cannot delete category with existing nominations")
			}
			return apperr.Persistence("Failed to delete category", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateCategoryList(ctx, s.cache)
	return nil
}

func (s *CategoryService) prepare(req *CategoryRequest) error {
	utils.SanitizeFields(&req.Name, &req.Description, &req.Icon)
	return validateRequest(req)
}

func (s *CategoryService) ensureUniqueName(ctx context.Context, name, slug string, exclude uuid.UUID) error {
	query := s.db.WithContext(ctx).Model(&models.AwardCategory{}).
		Where("(LOWER(name) = ? OR slug = ?)", strings.ToLower(name), slug)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperr.Persistence("Failed to check category name", err)
	}
	if count > 0 {
		return apperr.Validation("A category with this name already exists")
	}
	return nil
}
