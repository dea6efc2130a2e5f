package kdo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"noyel/internal/models"
)

func commentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment text is required", ErrInvalidInput)
	}
	return text, nil
}

// CreateComment adds a comment by a participant of the present.
func (s *Service) CreateComment(ctx context.Context, user models.User, presentID uuid.UUID, text string) (models.Comment, error) {
	text, err := commentText(text)
	if err != nil {
		return models.Comment{}, err
	}
	if _, err := requireParticipant(ctx, s.db, presentID, user.ID); err != nil {
		return models.Comment{}, err
	}

	comment := models.Comment{ID: uuid.New(), PresentID: presentID, AuthorID: user.ID, Text: text}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		return models.Comment{}, err
	}
	comment.Author = &user
	return comment, nil
}

// UpdateComment replaces the text of a comment written by the user.
func (s *Service) UpdateComment(ctx context.Context, user models.User, commentID uuid.UUID, text string) (models.Comment, error) {
	text, err := commentText(text)
	if err != nil {
		return models.Comment{}, err
	}
	res := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND author_id = ?", commentID, user.ID).
		Update("text", text)
	if res.Error != nil {
		return models.Comment{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Comment{}, ErrNotFound
	}

	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, "id = ?", commentID).Error; err != nil {
		return models.Comment{}, notFoundOr(err)
	}
	return comment, nil
}

// DeleteComment removes a comment written by the user.
func (s *Service) DeleteComment(ctx context.Context, user models.User, commentID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND author_id = ?", commentID, user.ID).Delete(&models.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
