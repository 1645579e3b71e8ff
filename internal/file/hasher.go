package file

import (
	"crypto/md5" //nolint:gosec // Manifest checksums detect accidental corruption only.
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/spf13/afero"
)

// HashFile streams the file at path through hasher and returns the lowercase hex digest.
func HashFile(fs afero.Fs, path string, hasher hash.Hash) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	if _, err = io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Checksum returns the MD5 digest of the file used in update manifests.
// MD5 is kept for compatibility with existing update clients; it must not be
// relied upon for tamper detection.
func Checksum(fs afero.Fs, path string) (string, error) {
	return HashFile(fs, path, md5.New()) //nolint:gosec // See Checksum doc.
}
