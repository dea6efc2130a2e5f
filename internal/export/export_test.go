package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"noyel/internal/db/dbtest"
	"noyel/internal/models"
)

func newIdentity(t *testing.T) *age.X25519Identity {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return id
}

func newSigner(t *testing.T, id *age.X25519Identity) *Signer {
	t.Helper()
	s, err := NewSigner(id.String())
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestSigner(t *testing.T) {
	id := newIdentity(t)
	s := newSigner(t, id)

	if s.Recipient() != id.Recipient().String() {
		t.Fatalf("recipient = %q, want %q", s.Recipient(), id.Recipient().String())
	}

	sig, err := s.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.Verify([]byte("payload"), sig, s.PublicKeyBase64()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.Verify([]byte("tampered"), sig, ""); err == nil {
		t.Fatal("expected verification failure for tampered payload")
	}

	other := newSigner(t, newIdentity(t))
	if err := other.Verify([]byte("payload"), sig, s.PublicKeyBase64()); err == nil {
		t.Fatal("expected unexpected-key error")
	}
}

func TestNewSignerRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"garbage", "not-a-key"},
		{"recipient instead of identity", newIdentity(t).Recipient().String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSigner(tt.key); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

type fakeUploader struct {
	key         string
	contentType string
	body        []byte
	sha         string
}

func (u *fakeUploader) PutObject(_ context.Context, key, contentType string, r io.Reader, size int64, sha string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	u.key, u.contentType, u.body, u.sha = key, contentType, data, sha
	return nil
}

func (u *fakeUploader) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.example.com/" + key + "?expires=" + ttl.String(), nil
}

var fixedNow = time.Date(2026, 12, 1, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, database *gorm.DB) models.User {
	t.Helper()
	user := models.User{ID: uuid.New(), Username: "alice", DisplayName: "Alice", PasswordHash: "secret-hash", IsActive: true}
	if err := database.Omit("Emails").Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	email := models.EmailAddress{ID: uuid.New(), UserID: user.ID, Email: "alice@example.com"}
	if err := database.Omit("User").Create(&email).Error; err != nil {
		t.Fatalf("create email: %v", err)
	}
	present := models.Present{ID: uuid.New(), Title: "Scarf", Giftee: "Mom", Status: models.StatusSuggested}
	if err := database.Omit("Participants", "BoughtBy").Create(&present).Error; err != nil {
		t.Fatalf("create present: %v", err)
	}
	if err := database.Create(&models.Participant{PresentID: present.ID, UserID: user.ID}).Error; err != nil {
		t.Fatalf("create participant: %v", err)
	}
	comment := models.Comment{ID: uuid.New(), PresentID: present.ID, AuthorID: user.ID, Text: "blue please"}
	if err := database.Omit("Present", "Author").Create(&comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return user
}

func newExporter(t *testing.T, opts Options) (*Exporter, models.User) {
	t.Helper()
	database := dbtest.Open(t)
	user := seed(t, database)
	e := New(database, opts)
	e.now = func() time.Time { return fixedNow }
	return e, user
}

func TestWriteAndInspect(t *testing.T) {
	signer := newSigner(t, newIdentity(t))
	e, user := newExporter(t, Options{Signer: signer})

	var buf bytes.Buffer
	archive, err := e.Write(context.Background(), &buf, user, "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if archive.Encrypted {
		t.Fatal("archive should not be encrypted without a recipient")
	}
	if len(archive.Manifest.Files) != 5 {
		t.Fatalf("manifest lists %d files, want 5", len(archive.Manifest.Files))
	}

	manifest, files, err := Inspect(bytes.NewReader(buf.Bytes()), signer)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if manifest.Username != "alice" || !manifest.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	for _, name := range []string{"data/profile.json", "data/emails.json", "data/presents.json", "data/comments.json", "data/invitations.json"} {
		if _, ok := files[name]; !ok {
			t.Errorf("archive missing %s", name)
		}
	}
	if strings.Contains(string(files["data/profile.json"]), "secret-hash") {
		t.Fatal("profile must not expose the password hash")
	}

	var presents []map[string]any
	if err := json.Unmarshal(files["data/presents.json"], &presents); err != nil {
		t.Fatalf("decode presents: %v", err)
	}
	if len(presents) != 1 || presents[0]["title"] != "Scarf" {
		t.Fatalf("unexpected presents %v", presents)
	}

	if _, _, err := Inspect(bytes.NewReader(buf.Bytes()), newSigner(t, newIdentity(t))); err == nil {
		t.Fatal("expected verification with another key to fail")
	}
}

func TestInspectRequiresSignature(t *testing.T) {
	e, user := newExporter(t, Options{})
	var buf bytes.Buffer
	if _, err := e.Write(context.Background(), &buf, user, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, _, err := Inspect(bytes.NewReader(buf.Bytes()), nil); err != nil {
		t.Fatalf("unsigned archive without signer: %v", err)
	}
	if _, _, err := Inspect(bytes.NewReader(buf.Bytes()), newSigner(t, newIdentity(t))); err == nil {
		t.Fatal("expected missing signature error")
	}
}

func TestWriteEncrypted(t *testing.T) {
	id := newIdentity(t)
	e, user := newExporter(t, Options{DefaultRecipient: id.Recipient().String()})

	var buf bytes.Buffer
	archive, err := e.Write(context.Background(), &buf, user, "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !archive.Encrypted {
		t.Fatal("expected encrypted archive")
	}
	if _, _, err := Inspect(bytes.NewReader(buf.Bytes()), nil); err == nil {
		t.Fatal("encrypted archive should not parse as plain zstd")
	}

	plain, err := age.Decrypt(&buf, id)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if _, _, err := Inspect(plain, nil); err != nil {
		t.Fatalf("Inspect decrypted: %v", err)
	}
}

func TestWriteInvalidRecipient(t *testing.T) {
	e, user := newExporter(t, Options{})
	_, err := e.Write(context.Background(), io.Discard, user, "age1nope")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
}

func TestUpload(t *testing.T) {
	e, user := newExporter(t, Options{})
	if _, err := e.Upload(context.Background(), user, ""); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("err = %v, want ErrStorageDisabled", err)
	}

	uploader := &fakeUploader{}
	e.uploader = uploader
	id := newIdentity(t)

	tests := []struct {
		name      string
		recipient string
		wantKey   string
		wantType  string
	}{
		{"plain", "", "exports/alice/20261201T093000Z.tar.zst", "application/zstd"},
		{"encrypted", id.Recipient().String(), "exports/alice/20261201T093000Z.tar.zst.age", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, err := e.Upload(context.Background(), user, tt.recipient)
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if up.Key != tt.wantKey || uploader.key != tt.wantKey {
				t.Fatalf("key = %q (stored %q), want %q", up.Key, uploader.key, tt.wantKey)
			}
			if uploader.contentType != tt.wantType {
				t.Fatalf("content type = %q", uploader.contentType)
			}
			if !strings.HasSuffix(up.URL, "expires=15m0s") {
				t.Fatalf("url = %q", up.URL)
			}
			if !up.ExpiresAt.Equal(fixedNow.Add(LinkTTL)) {
				t.Fatalf("expires at %v", up.ExpiresAt)
			}
			if len(uploader.sha) != 64 {
				t.Fatalf("sha = %q", uploader.sha)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("bob", fixedNow, false); got != "bob-20261201T093000Z.tar.zst" {
		t.Fatalf("FileName = %q", got)
	}
	if got := FileName("bob", fixedNow, true); got != "bob-20261201T093000Z.tar.zst.age" {
		t.Fatalf("FileName encrypted = %q", got)
	}
}
