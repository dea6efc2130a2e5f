package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresentStatus is the lifecycle state of a present.
type PresentStatus int

const (
	StatusRejected PresentStatus = iota
	StatusSuggested
	StatusAccepted
	StatusBought
)

var statusNames = map[PresentStatus]string{
	StatusRejected:  "rejected",
	StatusSuggested: "suggested",
	StatusAccepted:  "accepted",
	StatusBought:    "bought",
}

func (s PresentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PresentStatus(%d)", int(s))
}

// Valid reports whether s is one of the known statuses.
func (s PresentStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParsePresentStatus converts a status name into a PresentStatus.
func ParsePresentStatus(name string) (PresentStatus, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for status, candidate := range statusNames {
		if candidate == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown present status %q", name)
}

func (s PresentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PresentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParsePresentStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Present is a gift idea for a giftee, shared among its participants.
// BoughtByID is set iff Status is StatusBought.
type Present struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string        `gorm:"type:varchar(50);not null" json:"title"`
	Giftee      string        `gorm:"type:varchar(100);not null;index" json:"giftee"`
	Description string        `gorm:"type:text;not null;default:''" json:"description"`
	Link        string        `gorm:"type:text;not null;default:''" json:"link"`
	PriceCents  *int64        `json:"-"`
	Status      PresentStatus `gorm:"not null" json:"status"`
	BoughtByID  *uuid.UUID    `gorm:"type:uuid;index" json:"bought_by_id,omitempty"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	BoughtBy     *User  `gorm:"constraint:OnDelete:SET NULL;foreignKey:BoughtByID;references:ID" json:"bought_by,omitempty"`
	Participants []User `gorm:"many2many:participants" json:"participants,omitempty"`
}

// Price renders PriceCents as a decimal string, or "" when unset.
func (p Present) Price() string {
	if p.PriceCents == nil {
		return ""
	}
	return FormatPrice(*p.PriceCents)
}

// FormatPrice formats an amount of cents with two decimals.
func FormatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (p Present) MarshalJSON() ([]byte, error) {
	type plain Present
	return json.Marshal(struct {
		plain
		Price string `json:"price,omitempty"`
	}{plain: plain(p), Price: p.Price()})
}
