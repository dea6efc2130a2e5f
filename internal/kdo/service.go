// Package kdo coordinates presents, their participants, comments and invitations.
package kdo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noyel/internal/models"
)

// Mailer delivers invitation emails.
type Mailer interface {
	SendInvitation(ctx context.Context, invitation models.Invitation, present models.Present, sender models.User) error
}

// Service implements gift coordination on top of GORM.
type Service struct {
	db       *gorm.DB
	mailer   Mailer
	now      func() time.Time
	newToken func() (string, error)
}

// NewService builds a Service.
func NewService(database *gorm.DB, mailer Mailer) *Service {
	return &Service{
		db:       database,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: NewToken,
	}
}

// requireParticipant loads the present when userID participates in it.
func requireParticipant(ctx context.Context, tx *gorm.DB, presentID, userID uuid.UUID) (models.Present, error) {
	var present models.Present
	err := tx.WithContext(ctx).
		Joins("JOIN participants ON participants.present_id = presents.id").
		Where("presents.id = ? AND participants.user_id = ?", presentID, userID).
		First(&present).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Present{}, ErrNotFound
	}
	return present, err
}

// addParticipant inserts the membership unless it already exists and reports
// whether a row was added.
func addParticipant(ctx context.Context, tx *gorm.DB, presentID, userID, actorID uuid.UUID) (bool, error) {
	res := tx.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Participant{PresentID: presentID, UserID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := audit(ctx, tx, actorID, "participant.added", "present", presentID.String(), map[string]any{
		"user_id": userID.String(),
	})
	return true, err
}

func audit(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, action, targetType, targetID string, meta map[string]any) error {
	entry := models.NewAuditLog(&actorID, action, targetType, targetID, meta)
	return tx.WithContext(ctx).Create(&entry).Error
}
