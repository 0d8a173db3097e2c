// internal/services/vote_service.go
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
	"github.com/saptechnologies/sap-backend/internal/geoip"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type VoteService struct {
	db        *gorm.DB
	cache     cache.Cache
	geo       geoip.Locator
	insertSQL string
}

type VoteRequest struct {
	VoterEmail string `json:"voter_email" validate:"required,email,max=255"`
	VoterName  string `json:"voter_name" validate:"max=120"`
}

type VoteResult struct {
	TotalVotes int `json:"total_votes"`
}

type VoteStatus struct {
	HasVoted   bool `json:"has_voted"`
	TotalVotes int  `json:"total_votes"`
}

// Append-if-absent: inserts only when the nomination is approved and the (nomination, email)
// pair is new. PostgreSQL cannot infer parameter types in a SELECT list, hence the casts.
const (
	insertVoteSelectSQLite   = `SELECT ?, ?, ?, ?, ?, ?, ?`
	insertVoteSelectPostgres = `SELECT CAST(? AS uuid), CAST(? AS uuid), CAST(? AS text), CAST(? AS text), CAST(? AS text), CAST(? AS text), CAST(? AS timestamptz)`

	insertVoteSQL = `INSERT INTO nomination_votes (id, nomination_id, voter_email, voter_name, ip_address, country, voted_at)
%s
WHERE EXISTS (SELECT 1 FROM nominations WHERE id = ? AND status = ? AND deleted_at IS NULL)
ON CONFLICT (nomination_id, voter_email) DO NOTHING`
)

func voteInsertStatement(dialect string) string {
	if dialect == "postgres" {
		return fmt.Sprintf(insertVoteSQL, insertVoteSelectPostgres)
	}
	return fmt.Sprintf(insertVoteSQL, insertVoteSelectSQLite)
}

func NewVoteService(db *gorm.DB, c cache.Cache, geo geoip.Locator) *VoteService {
	return &VoteService{
		db:        db,
		cache:     c,
		geo:       geo,
		insertSQL: voteInsertStatement(db.Dialector.Name()),
	}
}

// Vote records one vote per normalized email on an approved nomination.
func (s *VoteService) Vote(ctx context.Context, nominationID uuid.UUID, req *VoteRequest, ip string) (*VoteResult, error) {
	req.VoterEmail = utils.NormalizeEmail(req.VoterEmail)
	req.VoterName = utils.SanitizeText(req.VoterName)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	country := ""
	if s.geo != nil {
		country = s.geo.LookupCountry(ip)
	}

	var total int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(s.insertSQL,
			uuid.New(), nominationID, req.VoterEmail, req.VoterName, ip, country, time.Now().UTC(),
			nominationID, models.NominationStatusApproved,
		)
		if result.Error != nil {
			return apperr.Persistence("Failed to record vote", result.Error)
		}

		if result.RowsAffected == 0 {
			return s.diagnoseRejectedVote(tx, nominationID)
		}

		if err := tx.Model(&models.Nomination{}).
			Where("id = ?", nominationID).
			UpdateColumn("total_votes", gorm.Expr("total_votes + 1")).Error; err != nil {
			return apperr.Persistence("Failed to update vote count", err)
		}

		if err := tx.Model(&models.Nomination{}).
			Where("id = ?", nominationID).
			Select("total_votes").
			Scan(&total).Error; err != nil {
			return apperr.Persistence("Failed to read vote count", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateNominationLists(ctx, s.cache)

	logrus.WithFields(logrus.Fields{
		"nomination_id": nominationID.String(),
		"country":       country,
		"total_votes":   total,
	}).Debug("Vote recorded")

	return &VoteResult{TotalVotes: total}, nil
}

// diagnoseRejectedVote explains why the conditional insert added nothing.
func (s *VoteService) diagnoseRejectedVote(tx *gorm.DB, nominationID uuid.UUID) error {
	var nomination models.Nomination
	if err := tx.Select("id", "status").First(&nomination, "id = ?", nominationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Nomination")
		}
		return apperr.Persistence("Failed to load nomination", err)
	}

	if nomination.Status != models.NominationStatusApproved {
		return apperr.Conflict("Voting is only allowed for approved nominations")
	}
	return apperr.Conflict("You have already voted for this nomination")
}

func (s *VoteService) VoteStatus(ctx context.Context, nominationID uuid.UUID, email string) (*VoteStatus, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateVar(email, "required,email"); err != nil {
		return nil, apperr.Validation("A valid email is required")
	}

	var nomination models.Nomination
	if err := s.db.WithContext(ctx).Select("id", "total_votes").First(&nomination, "id = ?", nominationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nomination")
		}
		return nil, apperr.Persistence("Failed to load nomination", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("nomination_id = ? AND voter_email = ?", nominationID, email).
		Count(&count).Error; err != nil {
		return nil, apperr.Persistence("Failed to check vote", err)
	}

	return &VoteStatus{
		HasVoted:   count > 0,
		TotalVotes: nomination.TotalVotes,
	}, nil
}
