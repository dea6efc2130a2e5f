// Package export builds signed archives of everything a user owns or takes part in.
package export

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"noyel/internal/models"
)

const (
	manifestFileName = "manifest.yaml"
	dataPrefix       = "data/"

	// LinkTTL is how long a presigned download link stays valid.
	LinkTTL = 15 * time.Minute
)

var (
	ErrInvalidRecipient = errors.New("invalid age recipient")
	ErrStorageDisabled  = errors.New("export storage is not configured")
)

// Uploader stores finished archives. *s3.Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, key, contentType string, r io.Reader, size int64, sha256 string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options configures an Exporter. A nil Signer leaves manifests unsigned and a
// nil Uploader disables Upload.
type Options struct {
	Signer           *Signer
	Uploader         Uploader
	DefaultRecipient string
}

// Exporter collects a user's data and writes it as a tar.zst archive.
type Exporter struct {
	db        *gorm.DB
	signer    *Signer
	uploader  Uploader
	recipient string
	now       func() time.Time
}

// New returns an Exporter reading from database.
func New(database *gorm.DB, opts Options) *Exporter {
	return &Exporter{
		db:        database,
		signer:    opts.Signer,
		uploader:  opts.Uploader,
		recipient: strings.TrimSpace(opts.DefaultRecipient),
		now:       time.Now,
	}
}

// CanUpload reports whether archives can be stored remotely.
func (e *Exporter) CanUpload() bool {
	return e.uploader != nil
}

// Archive reports what Write produced.
type Archive struct {
	Manifest  Manifest
	Encrypted bool
	CreatedAt time.Time
}

// FileName is the conventional name of an archive for user created at t.
func FileName(username string, t time.Time, encrypted bool) string {
	name := fmt.Sprintf("%s-%s.tar.zst", username, t.UTC().Format("20060102T150405Z"))
	if encrypted {
		name += ".age"
	}
	return name
}

type file struct {
	path string
	data []byte
}

// collect gathers the user's data as JSON documents ordered by path.
func (e *Exporter) collect(ctx context.Context, user models.User) ([]file, error) {
	db := e.db.WithContext(ctx)

	var emails []models.EmailAddress
	if err := db.Where("user_id = ?", user.ID).Order("created_at").Find(&emails).Error; err != nil {
		return nil, fmt.Errorf("load emails: %w", err)
	}
	var presents []models.Present
	if err := db.Joins("JOIN participants ON participants.present_id = presents.id AND participants.user_id = ?", user.ID).
		Order("presents.created_at").Find(&presents).Error; err != nil {
		return nil, fmt.Errorf("load presents: %w", err)
	}
	var comments []models.Comment
	if err := db.Where("author_id = ?", user.ID).Order("posted_at").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	var invitations []models.Invitation
	if err := db.Where("sent_by_id = ?", user.ID).Order("sent_at").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("load invitations: %w", err)
	}

	docs := map[string]any{
		"profile.json":     user,
		"emails.json":      emails,
		"presents.json":    presents,
		"comments.json":    comments,
		"invitations.json": invitations,
	}
	files := make([]file, 0, len(docs))
	for name, doc := range docs {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		files = append(files, file{path: dataPrefix + name, data: append(data, '\n')})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// Write streams the archive for user to w. A non-empty recipient, or the
// configured default, encrypts the whole archive to that age recipient.
func (e *Exporter) Write(ctx context.Context, w io.Writer, user models.User, recipient string) (Archive, error) {
	if err := ctx.Err(); err != nil {
		return Archive{}, err
	}

	var ageRecipient *age.X25519Recipient
	if r := e.resolveRecipient(recipient); r != "" {
		parsed, err := age.ParseX25519Recipient(r)
		if err != nil {
			return Archive{}, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		ageRecipient = parsed
	}

	files, err := e.collect(ctx, user)
	if err != nil {
		return Archive{}, err
	}

	created := e.now().UTC().Truncate(time.Second)
	manifest := Manifest{
		Version:   ManifestVersion,
		CreatedAt: created,
		UserID:    user.ID.String(),
		Username:  user.Username,
	}
	for _, f := range files {
		sum := sha256.Sum256(f.data)
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:   f.path,
			Size:   int64(len(f.data)),
			SHA256: hex.EncodeToString(sum[:]),
		})
	}
	if e.signer != nil {
		manifest.Signer = e.signer.Recipient()
		manifest.SigningPublicKey = e.signer.PublicKeyBase64()
		payload, err := manifest.SigningBytes()
		if err != nil {
			return Archive{}, fmt.Errorf("marshal manifest for signing: %w", err)
		}
		if manifest.Signature, err = e.signer.Sign(payload); err != nil {
			return Archive{}, fmt.Errorf("sign manifest: %w", err)
		}
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return Archive{}, fmt.Errorf("marshal manifest: %w", err)
	}

	out := w
	var enc io.WriteCloser
	if ageRecipient != nil {
		if enc, err = age.Encrypt(w, ageRecipient); err != nil {
			return Archive{}, fmt.Errorf("age encrypt: %w", err)
		}
		out = enc
	}
	if err := writeArchive(out, created, manifestBytes, files); err != nil {
		return Archive{}, err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return Archive{}, fmt.Errorf("finish encryption: %w", err)
		}
	}

	return Archive{Manifest: manifest, Encrypted: ageRecipient != nil, CreatedAt: created}, nil
}

func (e *Exporter) resolveRecipient(requested string) string {
	if r := strings.TrimSpace(requested); r != "" {
		return r
	}
	return e.recipient
}

func writeArchive(w io.Writer, modTime time.Time, manifest []byte, files []file) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	entries := append([]file{{path: manifestFileName, data: manifest}}, files...)
	for _, f := range entries {
		header := &tar.Header{
			Name:     f.path,
			Mode:     0o644,
			Size:     int64(len(f.data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			encoder.Close()
			return fmt.Errorf("write header for %q: %w", f.path, err)
		}
		if _, err := tw.Write(f.data); err != nil {
			encoder.Close()
			return fmt.Errorf("write %q: %w", f.path, err)
		}
	}
	if err := tw.Close(); err != nil {
		encoder.Close()
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return nil
}

// Upload is a stored archive and its temporary download link.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Encrypted bool      `json:"encrypted"`
}

// Upload writes the archive for user to the configured storage under
// exports/{username}/{timestamp}.tar.zst[.age] and presigns a download link.
func (e *Exporter) Upload(ctx context.Context, user models.User, recipient string) (Upload, error) {
	if e.uploader == nil {
		return Upload{}, ErrStorageDisabled
	}

	var buf bytes.Buffer
	archive, err := e.Write(ctx, &buf, user, recipient)
	if err != nil {
		return Upload{}, err
	}

	key := fmt.Sprintf("exports/%s/%s.tar.zst", user.Username, archive.CreatedAt.Format("20060102T150405Z"))
	contentType := "application/zstd"
	if archive.Encrypted {
		key += ".age"
		contentType = "application/octet-stream"
	}

	sum := sha256.Sum256(buf.Bytes())
	if err := e.uploader.PutObject(ctx, key, contentType, bytes.NewReader(buf.Bytes()), int64(buf.Len()), hex.EncodeToString(sum[:])); err != nil {
		return Upload{}, fmt.Errorf("upload %s: %w", key, err)
	}
	url, err := e.uploader.PresignGet(ctx, key, LinkTTL)
	if err != nil {
		return Upload{}, fmt.Errorf("presign %s: %w", key, err)
	}

	return Upload{
		Key:       key,
		URL:       url,
		ExpiresAt: e.now().UTC().Add(LinkTTL),
		Encrypted: archive.Encrypted,
	}, nil
}
