package zipcrypto

import (
	"fmt"
	"io"
)

// Reader decrypts a ZipCrypto stream, including its encryption header.
type Reader struct {
	r    io.Reader
	keys *keys
}

// NewReader consumes and verifies the encryption header from r.
// The password is rejected with ErrPassword when the decrypted check byte
// differs from check (see NewWriter for how check is chosen).
func NewReader(r io.Reader, password []byte, check byte) (*Reader, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	zr := &Reader{
		r:    r,
		keys: newKeys(password),
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("zipcrypto: read header: %w", err)
	}

	zr.keys.decrypt(header[:])

	if header[HeaderSize-1] != check {
		return nil, ErrPassword
	}

	return zr, nil
}

// Read decrypts data from the underlying reader.
func (zr *Reader) Read(p []byte) (int, error) {
	n, err := zr.r.Read(p)
	zr.keys.decrypt(p[:n])

	return n, err
}
