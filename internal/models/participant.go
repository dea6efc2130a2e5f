package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant joins a user to a present's collaboration group.
type Participant struct {
	PresentID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt  time.Time `gorm:"autoCreateTime"`

	Present *Present `gorm:"constraint:OnDelete:CASCADE;foreignKey:PresentID;references:ID"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}
