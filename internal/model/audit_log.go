package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions.
const (
	ActionUserCreated     = "USER_CREATED"
	ActionUserUpdated     = "USER_UPDATED"
	ActionUserDeactivated = "USER_DEACTIVATED"
	ActionUserReactivated = "USER_REACTIVATED"
	ActionProductDeleted  = "PRODUCT_DELETED"
)

// AuditLog is an append-only record of an administrative action.
type AuditLog struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"actorId"`
	ActorName string            `gorm:"not null" json:"actorName"`
	Action    string            `gorm:"type:varchar(40);not null;index" json:"action"`
	TargetID  string            `gorm:"not null" json:"targetId"`
	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

// TableName keeps the table name short and stable.
func (AuditLog) TableName() string { return "logs" }

func (l *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *AuditLog) BeforeUpdate(_ *gorm.DB) error { return ErrImmutable }
