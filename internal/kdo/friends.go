package kdo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"noyel/internal/models"
)

// MatchingGiftee returns the other presents for the same giftee, compared
// case-insensitively. A non-nil userID keeps only presents that user participates in.
func (s *Service) MatchingGiftee(ctx context.Context, present models.Present, userID *uuid.UUID) ([]models.Present, error) {
	q := s.db.WithContext(ctx).
		Where("LOWER(presents.giftee) = LOWER(?) AND presents.id <> ?", strings.TrimSpace(present.Giftee), present.ID)
	if userID != nil {
		q = q.Joins("JOIN participants ON participants.present_id = presents.id AND participants.user_id = ?", *userID)
	}
	var out []models.Present
	err := q.Order("presents.updated_at DESC").Find(&out).Error
	return out, err
}

// friendsQuery selects every other user sharing at least one present with userID.
func (s *Service) friendsQuery(ctx context.Context, userID uuid.UUID) *gorm.DB {
	shared := s.db.Model(&models.Participant{}).Select("present_id").Where("user_id = ?", userID)
	members := s.db.Model(&models.Participant{}).Select("user_id").Where("present_id IN (?)", shared)
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("users.id <> ?", userID).
		Where("users.id IN (?)", members)
}

// Friends returns the users the user shares a present with, ordered by username.
func (s *Service) Friends(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := s.friendsQuery(ctx, userID).Order("users.username").Find(&users).Error
	return users, err
}

// AreFriends reports whether a and b participate together in at least one present.
func (s *Service) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	return areFriends(ctx, s.db, a, b)
}

func areFriends(ctx context.Context, tx *gorm.DB, a, b uuid.UUID) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).
		Table("participants AS p1").
		Joins("JOIN participants AS p2 ON p2.present_id = p1.present_id").
		Where("p1.user_id = ? AND p2.user_id = ?", a, b).
		Count(&n).Error
	return n > 0, err
}

// NewFriendsForPresent returns friends of userID who do not participate in the present yet.
func (s *Service) NewFriendsForPresent(ctx context.Context, presentID, userID uuid.UUID) ([]models.User, error) {
	current := s.db.Model(&models.Participant{}).Select("user_id").Where("present_id = ?", presentID)
	var users []models.User
	err := s.friendsQuery(ctx, userID).
		Where("users.id NOT IN (?)", current).
		Order("users.username").
		Find(&users).Error
	return users, err
}
