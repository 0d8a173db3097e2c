// internal/models/content.go
package models

import (
	"time"
)

type NewsletterSubscriber struct {
	BaseModel
	Email          string           `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name           string           `json:"name,omitempty" gorm:"size:120"`
	Status         SubscriberStatus `json:"status" gorm:"type:varchar(20);not null;default:'subscribed';index"`
	Source         string           `json:"source,omitempty" gorm:"size:60"`
	SubscribedAt   time.Time        `json:"subscribed_at"`
	UnsubscribedAt *time.Time       `json:"unsubscribed_at,omitempty"`
}

// Software is an entry of the product catalog shown on the site.
type Software struct {
	BaseModel
	Name        string     `json:"name" gorm:"size:120;not null"`
	Slug        string     `json:"slug" gorm:"uniqueIndex;size:140;not null"`
	Summary     string     `json:"summary" gorm:"size:300"`
	Description string     `json:"description" gorm:"type:text"`
	Category    string     `json:"category" gorm:"size:60;index"`
	Features    StringList `json:"features"`
	Price       string     `json:"price,omitempty" gorm:"size:60"`
	WebsiteURL  string     `json:"website_url,omitempty" gorm:"size:500"`
	ImageURL    string     `json:"image_url,omitempty" gorm:"size:500"`
	IsActive    bool       `json:"is_active" gorm:"not null;index"`
	SortOrder   int        `json:"sort_order" gorm:"not null;default:0"`

	DescriptionHTML string `json:"description_html,omitempty" gorm:"-"`
}

func (Software) TableName() string {
	return "software"
}
