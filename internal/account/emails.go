package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"noyel/internal/db"
	"noyel/internal/models"
)

// ListEmails returns the user's addresses, oldest first.
func (s *Service) ListEmails(ctx context.Context, userID uuid.UUID) ([]models.EmailAddress, error) {
	var emails []models.EmailAddress
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("email ASC").
		Find(&emails).Error
	return emails, err
}

// AddEmail attaches an unverified address to the user and sends its verification link.
func (s *Service) AddEmail(ctx context.Context, user models.User, raw string) (models.EmailAddress, error) {
	email, err := NormalizeEmail(raw)
	if err != nil {
		return models.EmailAddress{}, err
	}

	address := models.EmailAddress{ID: uuid.New(), UserID: user.ID, Email: email}
	if err := s.db.WithContext(ctx).Omit("User").Create(&address).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return models.EmailAddress{}, ErrEmailTaken
		}
		return models.EmailAddress{}, err
	}

	if err := s.sendVerification(ctx, user, address); err != nil {
		return address, err
	}
	return address, nil
}

// DeleteEmail removes an address owned by the user.
func (s *Service) DeleteEmail(ctx context.Context, userID, emailID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", emailID, userID).Delete(&models.EmailAddress{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResendVerification sends the verification link of an unverified address again.
// The token is derived from the address, so the link is the same as before.
func (s *Service) ResendVerification(ctx context.Context, user models.User, emailID uuid.UUID) (models.EmailAddress, error) {
	address, err := s.ownedEmail(ctx, s.db, user.ID, "id = ?", emailID)
	if err != nil {
		return models.EmailAddress{}, err
	}
	if address.Verified {
		return models.EmailAddress{}, ErrAlreadyVerified
	}
	if err := s.sendVerification(ctx, user, address); err != nil {
		return address, err
	}
	return address, nil
}

// VerifyEmail marks the user's address as verified when token matches it.
// Verifying an address twice succeeds without changing it.
func (s *Service) VerifyEmail(ctx context.Context, user models.User, email, token string) (models.EmailAddress, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return models.EmailAddress{}, ErrNotFound
	}

	var (
		address models.EmailAddress
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.ownedEmail(ctx, tx, user.ID, "email = ?", email)
		if err != nil {
			return err
		}
		address = found
		if address.Verified {
			return nil
		}
		if !MatchesHash(s.secret, address.Email, token) {
			return ErrInvalidToken
		}

		now := s.now()
		if err := tx.Model(&address).Updates(map[string]any{"verified": true, "verified_at": now}).Error; err != nil {
			return err
		}
		address.Verified = true
		address.VerifiedAt = &now
		changed = true

		entry := models.NewAuditLog(&user.ID, "email.verified", "email_address", address.ID.String(), map[string]any{
			"email": address.Email,
		})
		return tx.Create(&entry).Error
	})
	if err != nil {
		return models.EmailAddress{}, err
	}
	if changed {
		s.metrics.EmailVerified()
	}
	return address, nil
}

func (s *Service) ownedEmail(ctx context.Context, tx *gorm.DB, userID uuid.UUID, cond string, arg any) (models.EmailAddress, error) {
	var address models.EmailAddress
	err := tx.WithContext(ctx).Where("user_id = ?", userID).Where(cond, arg).First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.EmailAddress{}, ErrNotFound
	}
	return address, err
}

func (s *Service) sendVerification(ctx context.Context, user models.User, address models.EmailAddress) error {
	token := MakeHash(s.secret, address.Email)
	if err := s.mailer.SendVerification(ctx, user, address, token); err != nil {
		return fmt.Errorf("%w: verification for %s: %v", ErrMailDelivery, address.Email, err)
	}
	return nil
}
