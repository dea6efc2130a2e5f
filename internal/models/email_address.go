package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailAddress is an address owned by a user. VerifiedAt is set iff Verified.
type EmailAddress struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Email      string     `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	Verified   bool       `gorm:"not null;default:false" json:"verified"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	User *User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
}
