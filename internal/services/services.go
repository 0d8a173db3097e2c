// internal/services/services.go
package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/geoip"
	"github.com/saptechnologies/sap-backend/internal/mailer"
)

// Services holds every service of the application. Constructing it registers the outbox handlers,
// so tasks enqueued by any service can be drained by the worker.
type Services struct {
	Storage       *StorageService
	Outbox        *OutboxService
	Notifications *NotificationService
	Certificates  *CertificateService
	Auth          *AuthService
	Users         *UserService
	Categories    *CategoryService
	Nominations   *NominationService
	Votes         *VoteService
	Admin         *AdminService
	Contacts      *ContactService
	Newsletter    *NewsletterService
	Software      *SoftwareService
}

func New(db *gorm.DB, cfg *config.Config, c cache.Cache, m mailer.Mailer, geo geoip.Locator) (*Services, error) {
	storageService, err := NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	outboxService := NewOutboxService(db, cfg.Outbox)
	notificationService := NewNotificationService(cfg, outboxService, m, storageService)
	certificateService := NewCertificateService(db, cfg, storageService, notificationService, outboxService)
	nominationService := NewNominationService(db, c, cfg, storageService, notificationService)

	return &Services{
		Storage:       storageService,
		Outbox:        outboxService,
		Notifications: notificationService,
		Certificates:  certificateService,
		Auth:          NewAuthService(db, cfg),
		Users:         NewUserService(db),
		Categories:    NewCategoryService(db, c, cfg),
		Nominations:   nominationService,
		Votes:         NewVoteService(db, c, geo),
		Admin:         NewAdminService(db, c, outboxService, notificationService, storageService, nominationService),
		Contacts:      NewContactService(db, notificationService),
		Newsletter:    NewNewsletterService(db, cfg, notificationService),
		Software:      NewSoftwareService(db),
	}, nil
}
