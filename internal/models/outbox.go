// internal/models/outbox.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxTask is a persisted side-effect intent drained by the background worker.
type OutboxTask struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Kind          TaskKind       `json:"kind" gorm:"type:varchar(40);not null;index"`
	Payload       datatypes.JSON `json:"payload"`
	Status        TaskStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_due,priority:1"`
	Attempts      int            `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts   int            `json:"max_attempts" gorm:"not null;default:5"`
	NextAttemptAt time.Time      `json:"next_attempt_at" gorm:"not null;index:idx_outbox_due,priority:2"`
	LockedUntil   *time.Time     `json:"locked_until,omitempty"`
	LastError     string         `json:"last_error,omitempty" gorm:"type:text"`
	ReferenceID   *uuid.UUID     `json:"reference_id,omitempty" gorm:"type:uuid;index"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (t *OutboxTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
