package account

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"noyel/internal/models"
)

type resetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// EncodeUID renders a user id the way password-reset links carry it.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DecodeUID parses the output of EncodeUID.
func DecodeUID(uidb64 string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(raw)
}

// RequestPasswordReset mails a reset link when email is a verified address of an
// active user. It reports success for unknown addresses too.
func (s *Service) RequestPasswordReset(ctx context.Context, raw string) error {
	email, err := NormalizeEmail(raw)
	if err != nil {
		return err
	}

	var address models.EmailAddress
	err = s.db.WithContext(ctx).
		Joins("User").
		Where("email_addresses.email = ? AND email_addresses.verified = ?", email, true).
		First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if address.User == nil || !address.User.IsActive {
		return nil
	}
	user := *address.User

	token, err := s.issueResetToken(user)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, user, address, EncodeUID(user.ID), token); err != nil {
		// Surfacing the failure would reveal that the address exists.
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("send password reset")
	}
	return nil
}

// ConfirmPasswordReset sets a new password when token is a live reset token for
// the user encoded in uidb64. Tokens stop working once the password changes.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uidb64, token, password, confirm string) error {
	userID, err := DecodeUID(uidb64)
	if err != nil {
		return ErrInvalidToken
	}
	user, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if err := s.checkResetToken(user, token); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, password, confirm)
}

func (s *Service) issueResetToken(user models.User) (string, error) {
	now := s.now()
	claims := resetClaims{
		Fingerprint: s.resetFingerprint(user),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.resetTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
}

func (s *Service) checkResetToken(user models.User, token string) error {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Subject != user.ID.String() {
		return ErrInvalidToken
	}
	if !hmac.Equal([]byte(claims.Fingerprint), []byte(s.resetFingerprint(user))) {
		return ErrInvalidToken
	}
	return nil
}

// resetFingerprint changes whenever the password hash or the last login does.
func (s *Service) resetFingerprint(user models.User) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(user.PasswordHash))
	mac.Write([]byte{0})
	if user.LastLoginAt != nil {
		mac.Write([]byte(strconv.FormatInt(user.LastLoginAt.Unix(), 10)))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
