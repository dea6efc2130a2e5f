package export

import (
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestVersion is written into every archive.
const ManifestVersion = "1"

// Manifest describes the contents of an export archive. Signature covers the
// manifest marshalled with an empty Signature.
type Manifest struct {
	Version          string         `yaml:"version"`
	CreatedAt        time.Time      `yaml:"created_at"`
	UserID           string         `yaml:"user_id"`
	Username         string         `yaml:"username"`
	Signer           string         `yaml:"signer,omitempty"`
	SigningPublicKey string         `yaml:"signing_public_key,omitempty"`
	Signature        string         `yaml:"signature,omitempty"`
	Files            []ManifestFile `yaml:"files"`
}

// SigningBytes marshals the manifest without its signature.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ManifestFile describes one file within the archive.
type ManifestFile struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}
