package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"noyel/internal/db/dbtest"
	"noyel/internal/models"
)

const testSecret = "s3cret"

type sentVerification struct {
	user    models.User
	address models.EmailAddress
	token   string
}

type sentReset struct {
	user   models.User
	uidb64 string
	token  string
}

type fakeMailer struct {
	mu            sync.Mutex
	err           error
	verifications []sentVerification
	resets        []sentReset
}

func (m *fakeMailer) SendVerification(_ context.Context, user models.User, address models.EmailAddress, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, sentVerification{user: user, address: address, token: token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, user models.User, _ models.EmailAddress, uidb64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.resets = append(m.resets, sentReset{user: user, uidb64: uidb64, token: token})
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeMailer) {
	t.Helper()
	mailer := &fakeMailer{}
	svc := NewService(dbtest.Open(t), mailer, Options{
		SecretKey:        testSecret,
		PasswordResetTTL: time.Hour,
		Hasher:           NewBcryptHasher(bcrypt.MinCost),
	})
	return svc, mailer
}

func signup(t *testing.T, svc *Service, username, email string) models.User {
	t.Helper()
	user, err := svc.Signup(context.Background(), SignupInput{
		Username:        username,
		Email:           email,
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	})
	if err != nil {
		t.Fatalf("Signup(%s) error = %v", username, err)
	}
	return user
}

func verifyAll(t *testing.T, svc *Service, user models.User) {
	t.Helper()
	emails, err := svc.ListEmails(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}
	for _, e := range emails {
		if _, err := svc.VerifyEmail(context.Background(), user, e.Email, MakeHash(testSecret, e.Email)); err != nil {
			t.Fatalf("VerifyEmail(%s) error = %v", e.Email, err)
		}
	}
}

func TestMakeHash(t *testing.T) {
	got := MakeHash(testSecret, "bob@example.com")
	if got != "6fdcbcdf0c230828b5fe" {
		t.Fatalf("MakeHash() = %q, want 6fdcbcdf0c230828b5fe", got)
	}

	tests := []struct {
		name   string
		secret string
		email  string
		token  string
		want   bool
	}{
		{name: "round trip", secret: testSecret, email: "bob@example.com", token: got, want: true},
		{name: "other email", secret: testSecret, email: "alice@example.com", token: got, want: false},
		{name: "other secret", secret: "rotated", email: "bob@example.com", token: got, want: false},
		{name: "truncated", secret: testSecret, email: "bob@example.com", token: got[:10], want: false},
		{name: "empty", secret: testSecret, email: "bob@example.com", token: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ok := MatchesHash(tt.secret, tt.email, tt.token); ok != tt.want {
				t.Fatalf("MatchesHash() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "simple", username: "alice"},
		{name: "punctuation", username: "a.b-c_d+e"},
		{name: "thirty runes", username: strings.Repeat("é", 30)},
		{name: "empty", username: "", wantErr: true},
		{name: "at sign", username: "bob@home", wantErr: true},
		{name: "space", username: "bob smith", wantErr: true},
		{name: "too long", username: strings.Repeat("a", 31), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidUsername) {
				t.Fatalf("ValidateUsername(%q) error = %v, want ErrInvalidUsername", tt.username, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "lower-cases", in: " Bob@Example.COM ", want: "bob@example.com"},
		{name: "display name", in: "Bob <bob@example.com>", wantErr: true},
		{name: "no domain dot", in: "bob@localhost", wantErr: true},
		{name: "no at", in: "bob.example.com", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{name: "ok", password: "long enough", confirm: "long enough"},
		{name: "mismatch", password: "long enough", confirm: "long enouhg", want: ErrPasswordMismatch},
		{name: "short", password: "short", confirm: "short", want: ErrWeakPassword},
		{name: "over bcrypt limit", password: strings.Repeat("x", 73), confirm: strings.Repeat("x", 73), want: ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.confirm)
			if tt.want == nil && err != nil {
				t.Fatalf("ValidatePassword() error = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("ValidatePassword() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignupAndVerifyEmail(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	user := signup(t, svc, "bob", "Bob@Example.com")
	if !user.IsActive {
		t.Fatalf("new user is not active")
	}
	if len(mailer.verifications) != 1 {
		t.Fatalf("verification mails = %d, want 1", len(mailer.verifications))
	}
	sent := mailer.verifications[0]
	if sent.address.Email != "bob@example.com" {
		t.Fatalf("verification sent to %q, want lower-cased address", sent.address.Email)
	}
	if sent.token != MakeHash(testSecret, "bob@example.com") {
		t.Fatalf("verification token = %q, want MakeHash of the address", sent.token)
	}

	if _, err := svc.VerifyEmail(ctx, user, "bob@example.com", "0000000000"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyEmail(bad token) error = %v, want ErrInvalidToken", err)
	}
	emails, err := svc.ListEmails(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}
	if len(emails) != 1 || emails[0].Verified {
		t.Fatalf("emails after bad token = %+v, want one unverified", emails)
	}

	verified, err := svc.VerifyEmail(ctx, user, "bob@example.com", sent.token)
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if !verified.Verified || verified.VerifiedAt == nil {
		t.Fatalf("VerifyEmail() = %+v, want verified with timestamp", verified)
	}

	if _, err := svc.VerifyEmail(ctx, user, "bob@example.com", "ignored"); err != nil {
		t.Fatalf("VerifyEmail(already verified) error = %v, want nil", err)
	}
	if _, err := svc.ResendVerification(ctx, user, verified.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("ResendVerification(verified) error = %v, want ErrAlreadyVerified", err)
	}

	var audits int64
	if err := svc.db.Model(&models.AuditLog{}).Where("action = ?", "email.verified").Count(&audits).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	if audits != 1 {
		t.Fatalf("email.verified audit entries = %d, want 1", audits)
	}
}

func TestVerifyEmailOtherUser(t *testing.T) {
	svc, _ := newTestService(t)
	signup(t, svc, "bob", "bob@example.com")
	mallory := signup(t, svc, "mallory", "mallory@example.com")

	_, err := svc.VerifyEmail(context.Background(), mallory, "bob@example.com", MakeHash(testSecret, "bob@example.com"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("VerifyEmail(other user's address) error = %v, want ErrNotFound", err)
	}
}

func TestSignupConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	signup(t, svc, "bob", "bob@example.com")

	tests := []struct {
		name     string
		username string
		email    string
		want     error
	}{
		{name: "username", username: "bob", email: "other@example.com", want: ErrUsernameTaken},
		{name: "email differing in case", username: "robert", email: "BOB@example.com", want: ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), SignupInput{
				Username: tt.username, Email: tt.email,
				Password: "correct horse", PasswordConfirm: "correct horse",
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Signup() error = %v, want %v", err, tt.want)
			}
		})
	}

	var users int64
	if err := svc.db.Model(&models.User{}).Count(&users).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 1 {
		t.Fatalf("users = %d, want 1 after rejected signups", users)
	}
}

func TestSignupMailFailureKeepsAccount(t *testing.T) {
	svc, mailer := newTestService(t)
	mailer.err = errors.New("smtp down")

	user, err := svc.Signup(context.Background(), SignupInput{
		Username: "bob", Email: "bob@example.com",
		Password: "correct horse", PasswordConfirm: "correct horse",
	})
	if !errors.Is(err, ErrMailDelivery) {
		t.Fatalf("Signup() error = %v, want ErrMailDelivery", err)
	}
	if _, err := svc.GetUser(context.Background(), user.ID); err != nil {
		t.Fatalf("GetUser() after mail failure error = %v", err)
	}

	mailer.err = nil
	emails, _ := svc.ListEmails(context.Background(), user.ID)
	if _, err := svc.ResendVerification(context.Background(), user, emails[0].ID); err != nil {
		t.Fatalf("ResendVerification() error = %v", err)
	}
	if len(mailer.verifications) != 1 {
		t.Fatalf("verification mails = %d, want 1", len(mailer.verifications))
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	bob := signup(t, svc, "bob", "bob@example.com")

	if _, err := svc.Authenticate(ctx, "bob@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate(unverified email) error = %v, want ErrInvalidCredentials", err)
	}
	verifyAll(t, svc, bob)

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  bool
	}{
		{name: "username", login: "bob", password: "correct horse"},
		{name: "verified email", login: "BOB@example.com", password: "correct horse"},
		{name: "wrong password", login: "bob", password: "battery staple", wantErr: true},
		{name: "unknown user", login: "alice", password: "correct horse", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(ctx, tt.login, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("Authenticate() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if user.ID != bob.ID || user.LastLoginAt == nil {
				t.Fatalf("Authenticate() = %+v, want bob with last login", user)
			}
		})
	}

	if err := svc.SetActive(ctx, bob.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate(inactive) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestPasswordReset(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	bob := signup(t, svc, "bob", "bob@example.com")

	if err := svc.RequestPasswordReset(ctx, "bob@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset(unverified) error = %v", err)
	}
	if len(mailer.resets) != 0 {
		t.Fatalf("reset mailed for an unverified address")
	}

	verifyAll(t, svc, bob)
	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset(unknown) error = %v, want nil", err)
	}
	if err := svc.RequestPasswordReset(ctx, "bob@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(mailer.resets) != 1 {
		t.Fatalf("reset mails = %d, want 1", len(mailer.resets))
	}
	reset := mailer.resets[0]
	if reset.uidb64 != EncodeUID(bob.ID) {
		t.Fatalf("uidb64 = %q, want %q", reset.uidb64, EncodeUID(bob.ID))
	}

	if err := svc.ConfirmPasswordReset(ctx, EncodeUID(bob.ID), reset.token+"x", "new password", "new password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ConfirmPasswordReset(tampered) error = %v, want ErrInvalidToken", err)
	}
	if err := svc.ConfirmPasswordReset(ctx, reset.uidb64, reset.token, "new password", "new password"); err != nil {
		t.Fatalf("ConfirmPasswordReset() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "new password"); err != nil {
		t.Fatalf("Authenticate(new password) error = %v", err)
	}
	if err := svc.ConfirmPasswordReset(ctx, reset.uidb64, reset.token, "third password", "third password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ConfirmPasswordReset(reused) error = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordResetExpires(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	bob := signup(t, svc, "bob", "bob@example.com")
	verifyAll(t, svc, bob)

	if err := svc.RequestPasswordReset(ctx, "bob@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	issued := time.Now().UTC()
	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }

	reset := mailer.resets[0]
	if err := svc.ConfirmPasswordReset(ctx, reset.uidb64, reset.token, "new password", "new password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ConfirmPasswordReset(expired) error = %v, want ErrInvalidToken", err)
	}
	if err := svc.ConfirmPasswordReset(ctx, "not-base64!", reset.token, "new password", "new password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ConfirmPasswordReset(bad uid) error = %v, want ErrInvalidToken", err)
	}
}

func TestEmailManagement(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	bob := signup(t, svc, "bob", "bob@example.com")
	alice := signup(t, svc, "alice", "alice@example.com")

	added, err := svc.AddEmail(ctx, bob, "Robert@Example.com")
	if err != nil {
		t.Fatalf("AddEmail() error = %v", err)
	}
	if added.Email != "robert@example.com" || added.Verified {
		t.Fatalf("AddEmail() = %+v, want unverified lower-cased address", added)
	}
	if len(mailer.verifications) != 3 {
		t.Fatalf("verification mails = %d, want 3", len(mailer.verifications))
	}
	if _, err := svc.AddEmail(ctx, alice, "robert@example.com"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("AddEmail(taken) error = %v, want ErrEmailTaken", err)
	}

	if err := svc.DeleteEmail(ctx, alice.ID, added.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteEmail(not owner) error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteEmail(ctx, bob.ID, added.ID); err != nil {
		t.Fatalf("DeleteEmail() error = %v", err)
	}
	emails, err := svc.ListEmails(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}
	if len(emails) != 1 || emails[0].Email != "bob@example.com" {
		t.Fatalf("ListEmails() = %+v, want only bob@example.com", emails)
	}
}

func TestProfileAndPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	bob := signup(t, svc, "bob", "bob@example.com")
	signup(t, svc, "alice", "alice@example.com")

	if _, err := svc.UpdateProfile(ctx, bob, "alice", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("UpdateProfile(taken) error = %v, want ErrUsernameTaken", err)
	}
	updated, err := svc.UpdateProfile(ctx, bob, "robert", "Robert")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Username != "robert" || updated.Name() != "Robert" {
		t.Fatalf("UpdateProfile() = %+v", updated)
	}

	if err := svc.ChangePassword(ctx, bob, "wrong password", "new password", "new password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("ChangePassword(wrong old) error = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, bob, "correct horse", "new password", "new password"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "robert", "new password"); err != nil {
		t.Fatalf("Authenticate(after change) error = %v", err)
	}
}
