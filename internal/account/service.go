// Package account manages users, their email addresses and credentials.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"noyel/internal/db"
	"noyel/internal/metrics"
	"noyel/internal/models"
)

const (
	maxUsernameLength    = 30
	maxDisplayNameLength = 150
	defaultResetTTL      = 72 * time.Hour
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, user models.User, address models.EmailAddress, token string) error
	SendPasswordReset(ctx context.Context, user models.User, address models.EmailAddress, uidb64, token string) error
}

// Options tunes a Service.
type Options struct {
	SecretKey        string
	PasswordResetTTL time.Duration
	Hasher           PasswordHasher
	Metrics          *metrics.Metrics
}

// Service implements the account operations on top of GORM.
type Service struct {
	db       *gorm.DB
	mailer   Mailer
	hasher   PasswordHasher
	secret   string
	resetTTL time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService builds a Service. A nil hasher selects bcrypt at its default cost.
func NewService(database *gorm.DB, mailer Mailer, opts Options) *Service {
	hasher := opts.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	ttl := opts.PasswordResetTTL
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &Service{
		db:       database,
		mailer:   mailer,
		hasher:   hasher,
		secret:   opts.SecretKey,
		resetTTL: ttl,
		metrics:  opts.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SignupInput carries the fields of the signup form.
type SignupInput struct {
	Username        string `json:"username"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Signup creates an active user with one unverified email address and sends the
// verification link. When only the email fails, the user is returned together
// with an ErrMailDelivery error.
func (s *Service) Signup(ctx context.Context, in SignupInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := ValidateUsername(username); err != nil {
		return models.User{}, err
	}
	displayName, err := validateDisplayName(in.DisplayName)
	if err != nil {
		return models.User{}, err
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	if err := ValidatePassword(in.Password, in.PasswordConfirm); err != nil {
		return models.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	address := models.EmailAddress{
		ID:     uuid.New(),
		UserID: user.ID,
		Email:  email,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Emails").Create(&user).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}
		if err := tx.Omit("User").Create(&address).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	if err := s.sendVerification(ctx, user, address); err != nil {
		return user, err
	}
	return user, nil
}

// Authenticate checks a username, or a verified email address when login contains
// "@", against password. Successful logins stamp LastLoginAt.
func (s *Service) Authenticate(ctx context.Context, login, password string) (models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	var user models.User
	var err error
	if strings.Contains(login, "@") {
		err = s.db.WithContext(ctx).
			Joins("JOIN email_addresses ON email_addresses.user_id = users.id").
			Where("email_addresses.email = ? AND email_addresses.verified = ?", strings.ToLower(login), true).
			First(&user).Error
	} else {
		err = s.db.WithContext(ctx).Where("username = ?", login).First(&user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return models.User{}, err
	}
	user.LastLoginAt = &now
	return user, nil
}

// GetUser loads an active user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	return user, err
}

// GetUserByUsername loads a user by username regardless of its active flag.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	return user, err
}

// SetActive enables or disables logins for the user.
func (s *Service) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile changes the username and display name of the user.
func (s *Service) UpdateProfile(ctx context.Context, user models.User, username, displayName string) (models.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return models.User{}, err
	}
	displayName, err := validateDisplayName(displayName)
	if err != nil {
		return models.User{}, err
	}

	err = s.db.WithContext(ctx).Model(&models.User{ID: user.ID}).Updates(map[string]any{
		"username":     username,
		"display_name": displayName,
	}).Error
	if db.IsUniqueViolation(err) {
		return models.User{}, ErrUsernameTaken
	}
	if err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, user.ID)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, user models.User, oldPassword, newPassword, confirm string) error {
	current, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(current.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, current.ID, newPassword, confirm)
}

func (s *Service) setPassword(ctx context.Context, userID uuid.UUID, password, confirm string) error {
	if err := ValidatePassword(password, confirm); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.User{ID: userID}).Update("password_hash", hash).Error
}

// ValidateUsername enforces the username rules: non-empty, at most 30 characters,
// letters, digits and ".+-_" only, and never "@".
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return fmt.Errorf("%w: at most %d characters", ErrInvalidUsername, maxUsernameLength)
	}
	if strings.Contains(username, "@") {
		return fmt.Errorf("%w: the \"@\" character is not allowed", ErrInvalidUsername)
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._+-", r) {
			continue
		}
		return fmt.Errorf("%w: character %q is not allowed", ErrInvalidUsername, r)
	}
	return nil
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is limited to %d characters", ErrInvalidInput, maxDisplayNameLength)
	}
	return name, nil
}

// NormalizeEmail checks the syntax of a bare address and lower-cases it.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, raw)
	}
	if domain := raw[strings.LastIndex(raw, "@")+1:]; !strings.Contains(domain, ".") {
		return "", fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, raw)
	}
	return strings.ToLower(addr.Address), nil
}
