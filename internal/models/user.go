package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Usernames never contain "@" so a login value can be
// told apart from an email address.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	DisplayName  string     `gorm:"type:varchar(150);not null;default:''" json:"display_name"`
	PasswordHash string     `gorm:"type:text;not null" json:"-"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Emails []EmailAddress `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
