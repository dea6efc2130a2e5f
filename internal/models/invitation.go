package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationTokenSize is the length of an invitation token.
const InvitationTokenSize = 16

// Invitation is a pending, single-use offer to join a present, sent to an email
// address. The row is deleted when redeemed.
type Invitation struct {
	Token     string    `gorm:"type:varchar(16);primaryKey" json:"token"`
	PresentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invitations_present_sent_to" json:"present_id"`
	SentByID  uuid.UUID `gorm:"type:uuid;not null;index" json:"sent_by_id"`
	SentTo    string    `gorm:"type:varchar(254);not null;uniqueIndex:idx_invitations_present_sent_to;index" json:"sent_to"`
	SentAt    time.Time `gorm:"not null" json:"sent_at"`

	Present *Present `gorm:"constraint:OnDelete:CASCADE;foreignKey:PresentID;references:ID" json:"present,omitempty"`
	SentBy  *User    `gorm:"constraint:OnDelete:CASCADE;foreignKey:SentByID;references:ID" json:"sent_by,omitempty"`
}
