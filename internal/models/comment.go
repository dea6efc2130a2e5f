package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a note left by a participant on a present.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PresentID uuid.UUID `gorm:"type:uuid;not null;index" json:"present_id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	PostedAt  time.Time `gorm:"autoCreateTime;index" json:"posted_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Present *Present `gorm:"constraint:OnDelete:CASCADE;foreignKey:PresentID;references:ID" json:"present,omitempty"`
	Author  *User    `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}
