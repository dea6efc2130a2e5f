package export

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// maxEntrySize bounds a single archive entry when reading it back.
const maxEntrySize = 64 << 20

// Inspect reads an unencrypted archive, checks every file against the manifest
// and, when signer is set, verifies the manifest signature. It returns the
// manifest and the file contents keyed by path.
func Inspect(r io.Reader, signer *Signer) (*Manifest, map[string][]byte, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifestBytes []byte
		files         = map[string][]byte{}
	)
	tr := tar.NewReader(decoder)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(header.Name)
		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize+1))
		if err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", name, err)
		}
		if len(data) > maxEntrySize {
			return nil, nil, fmt.Errorf("entry %q exceeds %d bytes", name, maxEntrySize)
		}
		if name == manifestFileName {
			manifestBytes = data
			continue
		}
		files[name] = data
	}

	if len(manifestBytes) == 0 {
		return nil, nil, errors.New("archive missing manifest.yaml")
	}
	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		return nil, nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}

	if signer != nil {
		if manifest.Signature == "" {
			return nil, nil, errors.New("manifest missing signature")
		}
		payload, err := manifest.SigningBytes()
		if err != nil {
			return nil, nil, fmt.Errorf("marshal manifest for verification: %w", err)
		}
		if err := signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
			return nil, nil, fmt.Errorf("verify manifest signature: %w", err)
		}
	}

	for _, f := range manifest.Files {
		data, ok := files[f.Path]
		if !ok {
			return nil, nil, fmt.Errorf("file %q missing from archive", f.Path)
		}
		if int64(len(data)) != f.Size {
			return nil, nil, fmt.Errorf("size mismatch for %q: expected %d got %d", f.Path, f.Size, len(data))
		}
		sum := sha256.Sum256(data)
		if !strings.EqualFold(hex.EncodeToString(sum[:]), f.SHA256) {
			return nil, nil, fmt.Errorf("sha256 mismatch for %q", f.Path)
		}
	}
	return &manifest, files, nil
}
