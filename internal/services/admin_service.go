// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/models"
)

type AdminService struct {
	db                  *gorm.DB
	cache               cache.Cache
	outbox              *OutboxService
	notificationService *NotificationService
	storageService      *StorageService
	nominationService   *NominationService
}

type AdminDashboardStats struct {
	TotalNominations   int64                             `json:"total_nominations"`
	NominationsByState map[models.NominationStatus]int64 `json:"nominations_by_status"`
	NewThisMonth       int64                             `json:"new_this_month"`
	TotalVotes         int64                             `json:"total_votes"`
	VotesToday         int64                             `json:"votes_today"`
	TotalCategories    int64                             `json:"total_categories"`
	NewContacts        int64                             `json:"new_contacts"`
	Subscribers        int64                             `json:"subscribers"`
	Tasks              map[models.TaskStatus]int64       `json:"tasks"`
	TopNominations     []TopNomination                   `json:"top_nominations"`
	NominationGrowth   float64                           `json:"nomination_growth"`
}

type TopNomination struct {
	ID           uuid.UUID               `json:"id"`
	NomineeName  string                  `json:"nominee_name"`
	Status       models.NominationStatus `json:"status"`
	TotalVotes   int                     `json:"total_votes"`
	CategoryName string                  `json:"category_name"`
}

type NominationStatusRequest struct {
	Status     models.NominationStatus `json:"status" validate:"required,nomination_status"`
	AdminNotes *string                 `json:"admin_notes" validate:"omitempty,max=5000"`
}

func NewAdminService(db *gorm.DB, c cache.Cache, outbox *OutboxService, notificationService *NotificationService, storageService *StorageService, nominationService *NominationService) *AdminService {
	return &AdminService{
		db:                  db,
		cache:               c,
		outbox:              outbox,
		notificationService: notificationService,
		storageService:      storageService,
		nominationService:   nominationService,
	}
}

// UpdateNominationStatus applies a moderation decision. The list cache is invalidated before
// returning; the certificate and the notification email are queued afterwards and their failure
// does not affect the result.
func (s *AdminService) UpdateNominationStatus(ctx context.Context, id uuid.UUID, req *NominationStatusRequest, adminID uuid.UUID) (*models.Nomination, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      req.Status,
		"reviewed_by": adminID,
		"reviewed_at": now,
	}
	if req.AdminNotes != nil {
		updates["admin_notes"] = *req.AdminNotes
	}

	result := s.db.WithContext(ctx).Model(&models.Nomination{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, apperr.Persistence("Failed to update nomination status", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("Nomination")
	}

	invalidateNominationLists(ctx, s.cache)

	nomination, err := s.nominationService.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, ok := models.CertificateKindFor(nomination.Status); ok && nomination.CertificateFile == "" {
		s.outbox.EnqueueBestEffort(ctx, models.TaskKindCertificate, &nomination.ID, &CertificateTaskPayload{
			NominationID: nomination.ID,
			Status:       nomination.Status,
		})
	}
	s.notificationService.SendStatusChanged(ctx, nomination)

	logrus.WithFields(logrus.Fields{
		"nomination_id": id.String(),
		"status":        nomination.Status,
		"admin_id":      adminID.String(),
	}).Info("Nomination status updated")

	return nomination, nil
}

// DeleteNomination removes a nomination and its votes. Managed files are deleted after the
// commit; external photo URLs are left alone.
func (s *AdminService) DeleteNomination(ctx context.Context, id uuid.UUID) (*NominationSnapshot, error) {
	var snapshot *NominationSnapshot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var nomination models.Nomination
		if err := tx.Preload("Category").First(&nomination, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Nomination")
			}
			return apperr.Persistence("Failed to load nomination", err)
		}

		snapshot = &NominationSnapshot{
			ID:             nomination.ID,
			NomineeName:    nomination.NomineeName,
			NominatorName:  nomination.NominatorName,
			NominatorEmail: nomination.NominatorEmail,
			CategoryName:   categoryName(&nomination),
			PhotoURL:       nomination.NomineePhoto,
			CertificateURL: nomination.CertificateFile,
		}

		if err := tx.Where("nomination_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return apperr.Persistence("Failed to delete votes", err)
		}
		if err := tx.Unscoped().Delete(&nomination).Error; err != nil {
			return apperr.Persistence("Failed to delete nomination", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.storageService.deleteBestEffort(ctx, snapshot.PhotoURL, "nomination deleted")
	s.storageService.deleteBestEffort(ctx, snapshot.CertificateURL, "nomination deleted")

	s.notificationService.SendNominationDeleted(ctx, snapshot)
	invalidateNominationLists(ctx, s.cache)

	logrus.WithFields(logrus.Fields{
		"nomination_id": id.String(),
		"nominee":       snapshot.NomineeName,
	}).Info("Nomination deleted")

	return snapshot, nil
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{
		NominationsByState: make(map[models.NominationStatus]int64),
	}
	db := s.db.WithContext(ctx)
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var byStatus []struct {
		Status models.NominationStatus
		Count  int64
	}
	if err := db.Model(&models.Nomination{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, apperr.Persistence("Failed to load statistics", err)
	}
	for _, row := range byStatus {
		stats.NominationsByState[row.Status] = row.Count
		stats.TotalNominations += row.Count
	}

	var lastMonth int64
	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"new this month", db.Model(&models.Nomination{}).Where("created_at >= ?", monthStart), &stats.NewThisMonth},
		{"last month", db.Model(&models.Nomination{}).Where("created_at >= ? AND created_at < ?", lastMonthStart, monthStart), &lastMonth},
		{"votes", db.Model(&models.Vote{}), &stats.TotalVotes},
		{"votes today", db.Model(&models.Vote{}).Where("voted_at >= ?", dayStart), &stats.VotesToday},
		{"categories", db.Model(&models.AwardCategory{}), &stats.TotalCategories},
		{"new contacts", db.Model(&models.Contact{}).Where("status = ?", models.ContactStatusNew), &stats.NewContacts},
		{"subscribers", db.Model(&models.NewsletterSubscriber{}).Where("status = ?", models.SubscriberStatusSubscribed), &stats.Subscribers},
	}
	for _, count := range counts {
		if err := count.query.Count(count.dest).Error; err != nil {
			return nil, apperr.Persistence("Failed to load statistics", fmt.Errorf("count %s: %w", count.name, err))
		}
	}

	if lastMonth > 0 {
		stats.NominationGrowth = float64(stats.NewThisMonth-lastMonth) / float64(lastMonth) * 100
	}

	tasks, err := s.outbox.CountByStatus(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to count outbox tasks")
		tasks = map[models.TaskStatus]int64{}
	}
	stats.Tasks = tasks

	var top []models.Nomination
	if err := db.Preload("Category").
		Where("status IN ?", []models.NominationStatus{models.NominationStatusApproved, models.NominationStatusWinner, models.NominationStatusFinalist}).
		Order("total_votes DESC").Order("created_at DESC").
		Limit(5).
		Find(&top).Error; err != nil {
		return nil, apperr.Persistence("Failed to load statistics", err)
	}
	stats.TopNominations = make([]TopNomination, 0, len(top))
	for _, n := range top {
		stats.TopNominations = append(stats.TopNominations, TopNomination{
			ID:           n.ID,
			NomineeName:  n.NomineeName,
			Status:       n.Status,
			TotalVotes:   n.TotalVotes,
			CategoryName: categoryName(&n),
		})
	}

	return stats, nil
}
