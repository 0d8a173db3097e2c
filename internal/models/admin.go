// internal/models/admin.go
package models

import (
	"github.com/google/uuid"
)

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values"`
	Status       int        `json:"status"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
}

type Contact struct {
	BaseModel
	Name      string        `json:"name" gorm:"size:120;not null"`
	Email     string        `json:"email" gorm:"size:255;not null;index"`
	Phone     string        `json:"phone,omitempty" gorm:"size:40"`
	Company   string        `json:"company,omitempty" gorm:"size:160"`
	Subject   string        `json:"subject" gorm:"size:200;not null"`
	Message   string        `json:"message" gorm:"type:text;not null"`
	Status    ContactStatus `json:"status" gorm:"type:varchar(20);not null;default:'new';index"`
	IPAddress string        `json:"ip_address,omitempty" gorm:"size:45"`
}
