package archive

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/kolbasa/apk-update/internal/archive/zipcrypto"
)

// flagEncrypted is the general purpose bit marking an encrypted entry.
const flagEncrypted = 0x1

// Format decides how the archive entry is compressed and protected.
type Format interface {
	// Name describes the format in logs.
	Name() string
	// Encrypted reports whether entries are password protected.
	Encrypted() bool
	// Apply configures zw and fh before the entry is created.
	Apply(zw *zip.Writer, fh *zip.FileHeader) error
}

// FormatFor returns Plain for an empty password and ZipCrypto otherwise.
func FormatFor(password string) Format {
	if password == "" {
		return Plain()
	}

	return ZipCrypto(password)
}

// plainFormat writes a standard deflate entry.
type plainFormat struct{}

// Plain returns the unencrypted format.
func Plain() Format {
	return plainFormat{}
}

func (plainFormat) Name() string { return "zip" }

func (plainFormat) Encrypted() bool { return false }

// Apply registers the maximum-level deflate compressor.
func (plainFormat) Apply(zw *zip.Writer, fh *zip.FileHeader) error {
	fh.Method = zip.Deflate

	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	return nil
}

// zipCryptoFormat encrypts the deflate stream with traditional PKWARE encryption.
type zipCryptoFormat struct {
	password []byte
}

// ZipCrypto returns a format encrypting entries with password.
func ZipCrypto(password string) Format {
	return zipCryptoFormat{password: []byte(password)}
}

func (zipCryptoFormat) Name() string { return "zip-encryptable" }

func (zipCryptoFormat) Encrypted() bool { return true }

// Apply marks the entry as encrypted and registers a compressor whose output
// passes through the cipher. Zip writers always emit a data descriptor for
// streamed entries, so the header check byte is derived from the DOS time.
func (f zipCryptoFormat) Apply(zw *zip.Writer, fh *zip.FileHeader) error {
	if len(f.password) == 0 {
		return zipcrypto.ErrEmptyPassword
	}

	fh.Method = zip.Deflate
	fh.Flags |= flagEncrypted
	check := byte(fh.ModifiedTime >> 8)

	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		cipher, err := zipcrypto.NewWriter(w, f.password, check)
		if err != nil {
			return nil, err
		}

		fw, err := flate.NewWriter(cipher, flate.BestCompression)
		if err != nil {
			return nil, err
		}

		return &sealedWriter{Writer: fw, cipher: cipher}, nil
	})

	return nil
}

// sealedWriter flushes the compressor and then makes sure the cipher header went out.
type sealedWriter struct {
	*flate.Writer

	cipher *zipcrypto.Writer
}

// Close finishes the deflate stream; the underlying entry writer stays open.
func (s *sealedWriter) Close() error {
	if err := s.Writer.Close(); err != nil {
		return err
	}

	return s.cipher.Close()
}
