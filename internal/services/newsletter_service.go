// internal/services/newsletter_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type NewsletterService struct {
	db                  *gorm.DB
	config              *config.Config
	notificationService *NotificationService
}

type SubscribeRequest struct {
	Email  string `json:"email" validate:"required,email,max=255"`
	Name   string `json:"name" validate:"max=120"`
	Source string `json:"source" validate:"max=60"`
}

type SubscriberFilter struct {
	utils.PaginationParams
	Status *models.SubscriberStatus `json:"status,omitempty"`
}

func NewNewsletterService(db *gorm.DB, config *config.Config, notificationService *NotificationService) *NewsletterService {
	return &NewsletterService{
		db:                  db,
		config:              config,
		notificationService: notificationService,
	}
}

// Subscribe is idempotent per normalized email. A previously unsubscribed address is subscribed
// again; the welcome email goes out only when the status actually changes.
func (s *NewsletterService) Subscribe(ctx context.Context, req *SubscribeRequest) (*models.NewsletterSubscriber, error) {
	req.Email = utils.NormalizeEmail(req.Email)
	utils.SanitizeFields(&req.Name, &req.Source)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var subscriber models.NewsletterSubscriber
	err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&subscriber).Error

	switch {
	case err == nil && subscriber.Status == models.SubscriberStatusSubscribed:
		return &subscriber, nil
	case err == nil:
		updates := map[string]interface{}{
			"status":          models.SubscriberStatusSubscribed,
			"subscribed_at":   now,
			"unsubscribed_at": nil,
		}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if err := s.db.WithContext(ctx).Model(&subscriber).Updates(updates).Error; err != nil {
			return nil, apperr.Persistence("Failed to subscribe", err)
		}
		subscriber.Status = models.SubscriberStatusSubscribed
		subscriber.SubscribedAt = now
		subscriber.UnsubscribedAt = nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		subscriber = models.NewsletterSubscriber{
			Email:        req.Email,
			Name:         req.Name,
			Source:       req.Source,
			Status:       models.SubscriberStatusSubscribed,
			SubscribedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&subscriber).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Concurrent subscribe of the same address
				return s.findByEmail(ctx, req.Email)
			}
			return nil, apperr.Persistence("Failed to subscribe", err)
		}
	default:
		return nil, apperr.Persistence("Failed to load subscriber", err)
	}

	unsubscribeURL, err := s.UnsubscribeURL(subscriber.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign unsubscribe link: %w", err)
	}
	s.notificationService.SendNewsletterWelcome(ctx, &subscriber, unsubscribeURL)

	return &subscriber, nil
}

// UnsubscribeURL points at the API endpoint with a signed token.
func (s *NewsletterService) UnsubscribeURL(email string) (string, error) {
	token, err := utils.GenerateUnsubscribeToken(email, s.config.JWT.UnsubscribeTTL)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(s.config.Frontend.BaseURL, "/")
	return fmt.Sprintf("%s/api/newsletter/unsubscribe?token=%s", base, url.QueryEscape(token)), nil
}

func (s *NewsletterService) Unsubscribe(ctx context.Context, token string) (*models.NewsletterSubscriber, error) {
	email, err := utils.ParseUnsubscribeToken(token)
	if err != nil {
		return nil, apperr.Validation("Invalid or expired unsubscribe link")
	}

	subscriber, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if subscriber.Status == models.SubscriberStatusUnsubscribed {
		return subscriber, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(subscriber).Updates(map[string]interface{}{
		"status":          models.SubscriberStatusUnsubscribed,
		"unsubscribed_at": now,
	}).Error; err != nil {
		return nil, apperr.Persistence("Failed to unsubscribe", err)
	}
	subscriber.Status = models.SubscriberStatusUnsubscribed
	subscriber.UnsubscribedAt = &now
	return subscriber, nil
}

func (s *NewsletterService) List(ctx context.Context, filter *SubscriberFilter) ([]models.NewsletterSubscriber, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.NewsletterSubscriber{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to count subscribers", err)
	}

	subscribers := []models.NewsletterSubscriber{}
	query = utils.ApplySort(query, filter.PaginationParams, []utils.SortField{
		{Name: "createdAt", Column: "created_at"},
		{Name: "email", Column: "email"},
	})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&subscribers).Error; err != nil {
		return nil, 0, apperr.Persistence("Failed to load subscribers", err)
	}
	return subscribers, total, nil
}

func (s *NewsletterService) findByEmail(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	var subscriber models.NewsletterSubscriber
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&subscriber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Subscriber")
		}
		return nil, apperr.Persistence("Failed to load subscriber", err)
	}
	return &subscriber, nil
}
