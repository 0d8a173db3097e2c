// internal/models/award.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AwardCategory struct {
	BaseModel
	Name        string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;size:120;not null"`
	Description string `json:"description" gorm:"type:text"`
	Icon        string `json:"icon" gorm:"size:100"`
	IsActive    bool   `json:"is_active" gorm:"not null"`

	NominationCount int64 `json:"nomination_count,omitempty" gorm:"-"`
}

type Nomination struct {
	BaseModel
	NomineeName           string           `json:"nominee_name" gorm:"size:120;not null;index"`
	NomineeTitle          string           `json:"nominee_title,omitempty" gorm:"size:120"`
	NomineeCompany        string           `json:"nominee_company,omitempty" gorm:"size:160"`
	NomineeCountry        string           `json:"nominee_country" gorm:"size:80;index"`
	NomineePhoto          string           `json:"nominee_photo,omitempty" gorm:"size:500"`
	CategoryID            uuid.UUID        `json:"category_id" gorm:"type:uuid;not null;index"`
	NominationReason      string           `json:"nomination_reason" gorm:"type:text"`
	Achievements          string           `json:"achievements,omitempty" gorm:"type:text"`
	ImpactDescription     string           `json:"impact_description,omitempty" gorm:"type:text"`
	NominatorName         string           `json:"nominator_name" gorm:"size:120;not null"`
	NominatorEmail        string           `json:"nominator_email" gorm:"size:255;not null;index"`
	NominatorPhone        string           `json:"nominator_phone,omitempty" gorm:"size:40"`
	NominatorOrganization string           `json:"nominator_organization,omitempty" gorm:"size:160"`
	Status                NominationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	// TotalVotes only changes together with a vote insert.
	TotalVotes             int        `json:"total_votes" gorm:"not null;default:0"`
	AdminNotes             string     `json:"admin_notes,omitempty" gorm:"type:text"`
	ReviewedBy             *uuid.UUID `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt             *time.Time `json:"reviewed_at,omitempty"`
	CertificateID          string     `json:"certificate_id,omitempty" gorm:"size:64;index"`
	CertificateFile        string     `json:"certificate_file,omitempty" gorm:"size:500"`
	CertificateGeneratedAt *time.Time `json:"certificate_generated_at,omitempty"`

	// Relationships
	Category *AwardCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Votes    []Vote         `json:"votes,omitempty" gorm:"foreignKey:NominationID"`
}

// PublicView strips nominator contact details and moderation fields from a nomination.
func (n Nomination) PublicView() Nomination {
	n.NominatorEmail = ""
	n.NominatorPhone = ""
	n.AdminNotes = ""
	n.ReviewedBy = nil
	n.Votes = nil
	return n
}

type Vote struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	NominationID uuid.UUID `json:"nomination_id" gorm:"type:uuid;not null;uniqueIndex:idx_votes_nomination_voter,priority:1"`
	VoterEmail   string    `json:"voter_email" gorm:"size:255;not null;uniqueIndex:idx_votes_nomination_voter,priority:2"`
	VoterName    string    `json:"voter_name,omitempty" gorm:"size:120"`
	IPAddress    string    `json:"ip_address" gorm:"size:45"`
	Country      string    `json:"country,omitempty" gorm:"size:8"`
	VotedAt      time.Time `json:"voted_at" gorm:"not null;index"`
}

func (Vote) TableName() string {
	return "nomination_votes"
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
