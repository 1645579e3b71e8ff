package archive

import (
	"archive/zip"
	"crypto/md5" //nolint:gosec // Manifest checksums are MD5.
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"

	"github.com/kolbasa/apk-update/internal/archive/zipcrypto"
)

// flagDataDescriptor marks entries whose sizes and CRC follow the data.
const flagDataDescriptor = 0x8

var (
	// ErrEmptyPassword is returned when the encrypted format gets no password.
	ErrEmptyPassword = zipcrypto.ErrEmptyPassword

	// ErrChecksumMismatch is returned when the archived content differs from the source.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")

	// ErrUnexpectedEntries is returned when the archive does not hold exactly the expected entry.
	ErrUnexpectedEntries = errors.New("unexpected archive entries")

	// ErrPasswordRequired is returned when an encrypted entry is read without a password.
	ErrPasswordRequired = errors.New("archive entry is encrypted")

	// ErrNotEncrypted is returned when a password is given for a plain entry.
	ErrNotEncrypted = errors.New("archive entry is not encrypted")
)

// Verify opens the archive at path, decodes its single entry named entryName
// and compares the MD5 of the content with wantChecksum (lowercase hex).
// The archive is read with the standard library reader so the result also
// proves the archive is readable by stock zip tooling.
func Verify(fs afero.Fs, path, entryName, password, wantChecksum string) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	if len(zr.File) != 1 || zr.File[0].Name != entryName {
		return fmt.Errorf("%w: want single entry %q, got %d", ErrUnexpectedEntries, entryName, len(zr.File))
	}

	entry := zr.File[0]

	rc, err := openEntry(entry, password)
	if err != nil {
		return err
	}

	defer func() {
		_ = rc.Close()
	}()

	sum := md5.New() //nolint:gosec // Manifest checksums are MD5.
	crc := crc32.NewIEEE()

	if _, err = io.Copy(io.MultiWriter(sum, crc), rc); err != nil {
		return fmt.Errorf("decode entry %s: %w", entryName, err)
	}

	if crc.Sum32() != entry.CRC32 {
		return fmt.Errorf("%w: crc32 %08x, want %08x", ErrChecksumMismatch, crc.Sum32(), entry.CRC32)
	}

	if got := hex.EncodeToString(sum.Sum(nil)); got != wantChecksum {
		return fmt.Errorf("%w: md5 %s, want %s", ErrChecksumMismatch, got, wantChecksum)
	}

	return nil
}

// openEntry returns a reader of the decoded entry content.
func openEntry(entry *zip.File, password string) (io.ReadCloser, error) {
	encrypted := entry.Flags&flagEncrypted != 0

	switch {
	case !encrypted && password != "":
		return nil, ErrNotEncrypted
	case !encrypted:
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", entry.Name, err)
		}

		return rc, nil
	case password == "":
		return nil, ErrPasswordRequired
	}

	if entry.Method != zip.Deflate {
		return nil, fmt.Errorf("%w: unsupported method %d", zip.ErrAlgorithm, entry.Method)
	}

	raw, err := entry.OpenRaw()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", entry.Name, err)
	}

	check := byte(entry.CRC32 >> 24)
	if entry.Flags&flagDataDescriptor != 0 {
		check = byte(entry.ModifiedTime >> 8)
	}

	plain, err := zipcrypto.NewReader(raw, []byte(password), check)
	if err != nil {
		return nil, fmt.Errorf("decrypt entry %s: %w", entry.Name, err)
	}

	return flate.NewReader(plain), nil
}
