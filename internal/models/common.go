// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Base model with common fields. IDs are generated in Go so the schema works on SQLite too.
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

func (JSONB) GormDataType() string {
	return "json"
}

func (JSONB) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// StringList is a text[] column on PostgreSQL and an array literal in a text column elsewhere.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(value interface{}) error {
	return (*pq.StringArray)(l).Scan(value)
}

func (StringList) GormDataType() string {
	return "text"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Enums
type NominationStatus string

const (
	NominationStatusPending  NominationStatus = "pending"
	NominationStatusApproved NominationStatus = "approved"
	NominationStatusRejected NominationStatus = "rejected"
	NominationStatusWinner   NominationStatus = "winner"
	NominationStatusFinalist NominationStatus = "finalist"
)

var NominationStatuses = []NominationStatus{
	NominationStatusPending,
	NominationStatusApproved,
	NominationStatusRejected,
	NominationStatusWinner,
	NominationStatusFinalist,
}

func (s NominationStatus) Valid() bool {
	for _, status := range NominationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// PubliclyVisible reports whether nominations in this status appear on the public site.
func (s NominationStatus) PubliclyVisible() bool {
	return s == NominationStatusApproved || s == NominationStatusWinner || s == NominationStatusFinalist
}

type CertificateKind string

const (
	CertificateKindWinner      CertificateKind = "winner"
	CertificateKindFinalist    CertificateKind = "finalist"
	CertificateKindParticipant CertificateKind = "participant"
)

// CertificateKindFor maps a moderation status to the certificate it earns, if any.
func CertificateKindFor(status NominationStatus) (CertificateKind, bool) {
	switch status {
	case NominationStatusWinner:
		return CertificateKindWinner, true
	case NominationStatusFinalist:
		return CertificateKindFinalist, true
	case NominationStatusApproved:
		return CertificateKindParticipant, true
	default:
		return "", false
	}
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor"
)

type TaskKind string

const (
	TaskKindEmail       TaskKind = "email"
	TaskKindCertificate TaskKind = "certificate"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusDead       TaskStatus = "dead"
)

type ContactStatus string

const (
	ContactStatusNew      ContactStatus = "new"
	ContactStatusRead     ContactStatus = "read"
	ContactStatusReplied  ContactStatus = "replied"
	ContactStatusArchived ContactStatus = "archived"
)

type SubscriberStatus string

const (
	SubscriberStatusSubscribed   SubscriberStatus = "subscribed"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
)
