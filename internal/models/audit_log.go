package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog captures notable account and gift-coordination events.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index"`
	Action     string         `gorm:"type:text;not null;index"`
	TargetType string         `gorm:"type:text;not null"`
	TargetID   string         `gorm:"type:text;not null;default:''"`
	Metadata   datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

// NewAuditLog builds an entry for action on the target. A nil meta is stored as {}.
func NewAuditLog(actorID *uuid.UUID, action, targetType, targetID string, meta map[string]any) AuditLog {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		raw = []byte("{}")
	}
	return AuditLog{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSON(raw),
	}
}

// All lists every persistent model in dependency order.
func All() []any {
	return []any{
		&User{},
		&EmailAddress{},
		&Present{},
		&Participant{},
		&Comment{},
		&Invitation{},
		&AuditLog{},
	}
}
