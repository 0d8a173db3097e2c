// internal/services/nomination_service.go
package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type NominationService struct {
	db            *gorm.DB
	cache         cache.Cache
	config        *config.Config
	storage       *StorageService
	notifications *NotificationService
}

// NominationRequest carries the editable fields of a nomination, for public submission and admin
// edits alike.
type NominationRequest struct {
	NomineeName           string `form:"nominee_name" json:"nominee_name" validate:"required,not_blank,max=120"`
	NomineeTitle          string `form:"nominee_title" json:"nominee_title" validate:"max=120"`
	NomineeCompany        string `form:"nominee_company" json:"nominee_company" validate:"max=160"`
	NomineeCountry        string `form:"nominee_country" json:"nominee_country" validate:"max=80"`
	CategoryID            string `form:"category_id" json:"category_id" validate:"required,not_blank"`
	NominationReason      string `form:"nomination_reason" json:"nomination_reason" validate:"max=5000"`
	Achievements          string `form:"achievements" json:"achievements" validate:"max=5000"`
	ImpactDescription     string `form:"impact_description" json:"impact_description" validate:"max=5000"`
	NominatorName         string `form:"nominator_name" json:"nominator_name" validate:"required,not_blank,max=120"`
	NominatorEmail        string `form:"nominator_email" json:"nominator_email" validate:"required,email,max=255"`
	NominatorPhone        string `form:"nominator_phone" json:"nominator_phone" validate:"max=40"`
	NominatorOrganization string `form:"nominator_organization" json:"nominator_organization" validate:"max=160"`
}

// PhotoUpload is an optional image attached to a submission.
type PhotoUpload struct {
	Reader   io.Reader
	Filename string
}

type NominationFilter struct {
	utils.PaginationParams
	CategoryID string                  `json:"category,omitempty"`
	Status     models.NominationStatus `json:"status,omitempty"`
	Country    string                  `json:"country,omitempty"`
	Search     string                  `json:"search,omitempty"`
}

var nominationSortFields = []utils.SortField{
	{Name: "createdAt", Column: "created_at"},
	{Name: "totalVotes", Column: "total_votes"},
	{Name: "nomineeName", Column: "nominee_name"},
	{Name: "updatedAt", Column: "updated_at"},
}

func NewNominationService(db *gorm.DB, c cache.Cache, config *config.Config, storage *StorageService, notifications *NotificationService) *NominationService {
	return &NominationService{
		db:            db,
		cache:         c,
		config:        config,
		storage:       storage,
		notifications: notifications,
	}
}

// Submit creates a pending nomination. A stored photo is removed again if the insert fails.
func (s *NominationService) Submit(ctx context.Context, req *NominationRequest, photo *PhotoUpload) (*models.Nomination, error) {
	category, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	nomination := &models.Nomination{Status: models.NominationStatusPending}
	applyNominationRequest(nomination, req, category.ID)

	if photo != nil && photo.Reader != nil {
		stored, err := s.storage.SaveImage(ctx, photo.Reader, photo.Filename, s.storage.GetDefaultUploadOptions("nominations"))
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				return nil, err
			}
			return nil, apperr.Persistence("Failed to store photo", err)
		}
		nomination.NomineePhoto = stored.URL
	}

	if err := s.db.WithContext(ctx).Create(nomination).Error; err != nil {
		s.storage.deleteBestEffort(ctx, nomination.NomineePhoto, "nomination insert failed")
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, apperr.Validation("Category not found")
		}
		return nil, apperr.Persistence("Failed to create nomination", err)
	}
	nomination.Category = category

	invalidateNominationLists(ctx, s.cache)
	s.notifications.SendNominationReceived(ctx, nomination)

	return nomination, nil
}

// List serves the public listing from the cache when the same filter set was computed within the
// TTL. Only publicly visible statuses may be requested.
func (s *NominationService) List(ctx context.Context, filter *NominationFilter) (*NominationPage, error) {
	filter.PaginationParams = utils.NormalizePagination(filter.PaginationParams)
	if filter.Status == "" {
		filter.Status = models.NominationStatusApproved
	}
	if !filter.Status.PubliclyVisible() {
		return nil, apperr.Validation("status must be one of approved, winner, finalist")
	}
	if filter.CategoryID != "" {
		if _, err := uuid.Parse(filter.CategoryID); err != nil {
			return nil, apperr.Validation("category must be a valid id")
		}
	}

	key := nominationListKey(filter)
	page := &NominationPage{}
	if hit, err := cache.GetJSON(ctx, s.cache, key, page); err != nil {
		logCacheError(err, key)
	} else if hit {
		return page, nil
	}

	items, total, err := s.find(ctx, filter, false)
	if err != nil {
		return nil, err
	}

	page = &NominationPage{
		Items: make([]models.Nomination, 0, len(items)),
		Meta:  utils.NewPageMeta(total, filter.PaginationParams),
	}
	for _, n := range items {
		page.Items = append(page.Items, n.PublicView())
	}

	if err := cache.SetJSON(ctx, s.cache, key, page, s.config.Cache.NominationTTL); err != nil {
		logCacheError(err, key)
	}
	return page, nil
}

// AdminList lists nominations in any status, uncached, with nominator details.
func (s *NominationService) AdminList(ctx context.Context, filter *NominationFilter) ([]models.Nomination, utils.PageMeta, error) {
	filter.PaginationParams = utils.NormalizePagination(filter.PaginationParams)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, utils.PageMeta{}, apperr.Validation("invalid status filter")
	}
	if filter.CategoryID != "" {
		if _, err := uuid.Parse(filter.CategoryID); err != nil {
			return nil, utils.PageMeta{}, apperr.Validation("category must be a valid id")
		}
	}

	items, total, err := s.find(ctx, filter, true)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return items, utils.NewPageMeta(total, filter.PaginationParams), nil
}

func (s *NominationService) find(ctx context.Context, filter *NominationFilter, admin bool) ([]models.Nomination, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Nomination{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if country := strings.TrimSpace(filter.Country); country != "" {
		query = query.Where(`LOWER(nominee_country) LIKE ? ESCAPE '\'`, likePattern(country))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		if admin {
			query = query.Where(`(LOWER(nominee_name) LIKE ? ESCAPE '\' OR LOWER(nominee_title) LIKE ? ESCAPE '\' OR LOWER(nominee_company) LIKE ? ESCAPE '\' OR LOWER(nominator_name) LIKE ? ESCAPE '\' OR LOWER(nominator_email) LIKE ? ESCAPE '\')`,
				pattern, pattern, pattern, pattern, pattern)
		} else {
			query = query.Where(`(LOWER(nominee_name) LIKE ? ESCAPE '\' OR LOWER(nominee_title) LIKE ? ESCAPE '\' OR LOWER(nominee_company) LIKE ? ESCAPE '\')`,
				pattern, pattern, pattern)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count nominations", err)
	}

	nominations := []models.Nomination{}
	query = utils.ApplySort(query, filter.PaginationParams, nominationSortFields)
	if err := utils.ApplyPagination(query, filter.PaginationParams).
		Preload("Category").
		Find(&nominations).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to load nominations", err)
	}

	return nominations, total, nil
}

// Get returns a publicly visible nomination.
func (s *NominationService) Get(ctx context.Context, id uuid.UUID) (*models.Nomination, error) {
	var nomination models.Nomination
	err := s.db.WithContext(ctx).
		Preload("Category").
		Where("status IN ?", []models.NominationStatus{models.NominationStatusApproved, models.NominationStatusWinner, models.NominationStatusFinalist}).
		First(&nomination, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nomination")
		}
		return nil, apperr.Persistence("Failed to load nomination", err)
	}

	view := nomination.PublicView()
	return &view, nil
}

// AdminGet returns a nomination with its category and votes, newest vote first.
func (s *NominationService) AdminGet(ctx context.Context, id uuid.UUID) (*models.Nomination, error) {
	var nomination models.Nomination
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Votes", func(db *gorm.DB) *gorm.DB {
			return db.Order("voted_at DESC")
		}).
		First(&nomination, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nomination")
		}
		return nil, apperr.Persistence("Failed to load nomination", err)
	}
	return &nomination, nil
}

// Update edits nominee and nominator fields. Status, votes and certificate fields are not
// reachable from here.
func (s *NominationService) Update(ctx context.Context, id uuid.UUID, req *NominationRequest) (*models.Nomination, error) {
	category, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var nomination models.Nomination
	if err := s.db.WithContext(ctx).First(&nomination, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nomination")
		}
		return nil, apperr.Persistence("Failed to load nomination", err)
	}

	applyNominationRequest(&nomination, req, category.ID)
	if err := s.db.WithContext(ctx).Model(&nomination).Select(
		"nominee_name", "nominee_title", "nominee_company", "nominee_country", "category_id",
		"nomination_reason", "achievements", "impact_description",
		"nominator_name", "nominator_email", "nominator_phone", "nominator_organization",
	).Updates(&nomination).Error; err != nil {
		return nil, apperr.Persistence("Failed to update nomination", err)
	}

	invalidateNominationLists(ctx, s.cache)
	return s.AdminGet(ctx, id)
}

// prepare sanitizes and validates a request and resolves its active category.
func (s *NominationService) prepare(ctx context.Context, req *NominationRequest) (*models.AwardCategory, error) {
	utils.SanitizeFields(
		&req.NomineeName, &req.NomineeTitle, &req.NomineeCompany, &req.NomineeCountry,
		&req.NominationReason, &req.Achievements, &req.ImpactDescription,
		&req.NominatorName, &req.NominatorPhone, &req.NominatorOrganization,
	)
	req.NominatorEmail = utils.NormalizeEmail(req.NominatorEmail)
	req.CategoryID = strings.TrimSpace(req.CategoryID)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, apperr.Validation("categoryId must be a valid id")
	}

	var category models.AwardCategory
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", categoryID, true).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("Category not found or inactive")
		}
		return nil, apperr.Persistence("Failed to load category", err)
	}
	return &category, nil
}

func applyNominationRequest(n *models.Nomination, req *NominationRequest, categoryID uuid.UUID) {
	n.NomineeName = req.NomineeName
	n.NomineeTitle = req.NomineeTitle
	n.NomineeCompany = req.NomineeCompany
	n.NomineeCountry = req.NomineeCountry
	n.CategoryID = categoryID
	n.NominationReason = req.NominationReason
	n.Achievements = req.Achievements
	n.ImpactDescription = req.ImpactDescription
	n.NominatorName = req.NominatorName
	n.NominatorEmail = req.NominatorEmail
	n.NominatorPhone = req.NominatorPhone
	n.NominatorOrganization = req.NominatorOrganization
}

// likePattern lowercases s, escapes LIKE wildcards and wraps it for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
