package kdo

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noyel/internal/db"
	"noyel/internal/models"
)

// InviteResult tells whether Invite added a friend directly or sent an invitation.
type InviteResult struct {
	Added      *models.User       `json:"added,omitempty"`
	Invitation *models.Invitation `json:"invitation,omitempty"`
}

// asEmail returns the lower-cased address when query is a bare email address.
func asEmail(query string) (string, bool) {
	addr, err := mail.ParseAddress(query)
	if err != nil || addr.Address != query {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

// Invite brings someone into a present the user participates in. query is a
// username or an email address. Friends are added at once; any other address
// receives an invitation email carrying a fresh token.
func (s *Service) Invite(ctx context.Context, user models.User, presentID uuid.UUID, query string) (InviteResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return InviteResult{}, fmt.Errorf("%w: a username or email address is required", ErrInvalidInput)
	}
	present, err := requireParticipant(ctx, s.db, presentID, user.ID)
	if err != nil {
		return InviteResult{}, err
	}

	email, isEmail := asEmail(query)
	if !isEmail {
		return s.addFriend(ctx, user, present, "username = ?", query)
	}

	res, err := s.addFriend(ctx, user, present,
		"id IN (?)", s.db.Model(&models.EmailAddress{}).Select("user_id").Where("email = ? AND verified = ?", email, true))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrUnknownFriend) {
		return InviteResult{}, err
	}

	invitation, err := s.createInvitation(ctx, user, present, email)
	if err != nil {
		return InviteResult{}, err
	}
	res = InviteResult{Invitation: &invitation}
	if err := s.sendInvitation(ctx, invitation, present, user); err != nil {
		return res, err
	}
	return res, nil
}

// addFriend adds the user matching cond to the present when they are a friend of user.
func (s *Service) addFriend(ctx context.Context, user models.User, present models.Present, cond string, args ...any) (InviteResult, error) {
	var friend models.User
	err := s.db.WithContext(ctx).Where(cond, args...).Where("is_active = ?", true).First(&friend).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return InviteResult{}, ErrUnknownFriend
	}
	if err != nil {
		return InviteResult{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := areFriends(ctx, tx, user.ID, friend.ID)
		if err != nil {
			return err
		}
		if !ok || friend.ID == user.ID {
			return ErrUnknownFriend
		}
		_, err = addParticipant(ctx, tx, present.ID, friend.ID, user.ID)
		return err
	})
	if err != nil {
		return InviteResult{}, err
	}
	return InviteResult{Added: &friend}, nil
}

func (s *Service) createInvitation(ctx context.Context, user models.User, present models.Present, email string) (models.Invitation, error) {
	token, err := s.newToken()
	if err != nil {
		return models.Invitation{}, fmt.Errorf("generate token: %w", err)
	}
	invitation := models.Invitation{
		Token:     token,
		PresentID: present.ID,
		SentByID:  user.ID,
		SentTo:    email,
		SentAt:    s.now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&invitation).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrAlreadyInvited, email)
			}
			return err
		}
		return audit(ctx, tx, user.ID, "invitation.created", "invitation", invitation.Token, map[string]any{
			"present_id": present.ID.String(),
			"sent_to":    email,
		})
	})
	if err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

func (s *Service) sendInvitation(ctx context.Context, invitation models.Invitation, present models.Present, sender models.User) error {
	if err := s.mailer.SendInvitation(ctx, invitation, present, sender); err != nil {
		return fmt.Errorf("%w: invitation to %s: %v", ErrMailDelivery, invitation.SentTo, err)
	}
	return nil
}

// ListInvitations returns pending invitations sent to any verified address of the user.
func (s *Service) ListInvitations(ctx context.Context, user models.User) ([]models.Invitation, error) {
	addresses := s.db.Model(&models.EmailAddress{}).Select("email").Where("user_id = ? AND verified = ?", user.ID, true)
	var out []models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Present").Preload("SentBy").
		Where("sent_to IN (?)", addresses).
		Order("sent_at ASC").
		Find(&out).Error
	return out, err
}

// ListPresentInvitations returns the pending invitations of a present the user participates in.
func (s *Service) ListPresentInvitations(ctx context.Context, user models.User, presentID uuid.UUID) ([]models.Invitation, error) {
	if _, err := requireParticipant(ctx, s.db, presentID, user.ID); err != nil {
		return nil, err
	}
	var out []models.Invitation
	err := s.db.WithContext(ctx).
		Preload("SentBy").
		Where("present_id = ?", presentID).
		Order("sent_at ASC").
		Find(&out).Error
	return out, err
}

// Redeem consumes the invitation and makes the user a participant of its present.
// Exactly one concurrent caller wins a token; the others get ErrInvalidToken.
// Redeeming a present the user already participates in still consumes the token.
func (s *Service) Redeem(ctx context.Context, user models.User, token string) (models.Present, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Present{}, ErrInvalidToken
	}

	var present models.Present
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation models.Invitation
		if err := tx.First(&invitation, "token = ?", token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		res := tx.Where("token = ?", token).Delete(&models.Invitation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}

		added, err := addParticipant(ctx, tx, invitation.PresentID, user.ID, user.ID)
		if err != nil {
			return err
		}
		if err := audit(ctx, tx, user.ID, "invitation.redeemed", "invitation", token, map[string]any{
			"present_id":          invitation.PresentID.String(),
			"sent_to":             invitation.SentTo,
			"already_participant": !added,
		}); err != nil {
			return err
		}
		return tx.First(&present, "id = ?", invitation.PresentID).Error
	})
	if err != nil {
		return models.Present{}, err
	}
	return present, nil
}

// participantInvitation loads an invitation whose present the user participates in.
func (s *Service) participantInvitation(ctx context.Context, tx *gorm.DB, user models.User, token string) (models.Invitation, models.Present, error) {
	var invitation models.Invitation
	if err := tx.WithContext(ctx).Preload("SentBy").First(&invitation, "token = ?", token).Error; err != nil {
		return models.Invitation{}, models.Present{}, notFoundOr(err)
	}
	present, err := requireParticipant(ctx, tx, invitation.PresentID, user.ID)
	if err != nil {
		return models.Invitation{}, models.Present{}, err
	}
	return invitation, present, nil
}

// ResendInvitation mails the same token again and refreshes its sent time.
func (s *Service) ResendInvitation(ctx context.Context, user models.User, token string) (models.Invitation, error) {
	invitation, present, err := s.participantInvitation(ctx, s.db, user, token)
	if err != nil {
		return models.Invitation{}, err
	}

	sentAt := s.now()
	if err := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("token = ?", invitation.Token).
		Update("sent_at", sentAt).Error; err != nil {
		return models.Invitation{}, err
	}
	invitation.SentAt = sentAt

	sender := user
	if invitation.SentBy != nil {
		sender = *invitation.SentBy
	}
	if err := s.sendInvitation(ctx, invitation, present, sender); err != nil {
		return invitation, err
	}
	return invitation, nil
}

// DeleteInvitation withdraws a pending invitation. Participants are left untouched.
func (s *Service) DeleteInvitation(ctx context.Context, user models.User, token string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, _, err := s.participantInvitation(ctx, tx, user, token)
		if err != nil {
			return err
		}
		res := tx.Where("token = ?", invitation.Token).Delete(&models.Invitation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return audit(ctx, tx, user.ID, "invitation.deleted", "invitation", invitation.Token, map[string]any{
			"present_id": invitation.PresentID.String(),
			"sent_to":    invitation.SentTo,
		})
	})
}
