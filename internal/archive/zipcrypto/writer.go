package zipcrypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Writer encrypts everything written to it and forwards the ciphertext to the
// underlying writer. The 12-byte encryption header is emitted lazily, right
// before the first ciphertext byte, because zip writers construct the entry
// compressor before the local file header is written.
type Writer struct {
	w      io.Writer
	keys   *keys
	header [HeaderSize]byte
	sent   bool
	buf    []byte
}

// NewWriter returns a Writer for password. check is the verification byte
// stored as the last header byte: the high byte of the entry CRC-32, or the
// high byte of the DOS modification time when the entry uses a data descriptor.
func NewWriter(w io.Writer, password []byte, check byte) (*Writer, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	zw := &Writer{
		w:    w,
		keys: newKeys(password),
	}

	if _, err := io.ReadFull(rand.Reader, zw.header[:HeaderSize-1]); err != nil {
		return nil, fmt.Errorf("zipcrypto: generate header: %w", err)
	}

	zw.header[HeaderSize-1] = check

	return zw, nil
}

// Write encrypts p and writes it to the underlying writer.
func (zw *Writer) Write(p []byte) (int, error) {
	if err := zw.writeHeader(); err != nil {
		return 0, err
	}

	if len(p) == 0 {
		return 0, nil
	}

	if cap(zw.buf) < len(p) {
		zw.buf = make([]byte, len(p))
	}

	buf := zw.buf[:len(p)]
	copy(buf, p)
	zw.keys.encrypt(buf)

	n, err := zw.w.Write(buf)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}

	return n, err
}

// Close emits the header if nothing has been written yet. It does not close the underlying writer.
func (zw *Writer) Close() error {
	return zw.writeHeader()
}

// writeHeader encrypts and writes the header once.
func (zw *Writer) writeHeader() error {
	if zw.sent {
		return nil
	}

	zw.sent = true

	header := zw.header
	zw.keys.encrypt(header[:])

	if _, err := zw.w.Write(header[:]); err != nil {
		return fmt.Errorf("zipcrypto: write header: %w", err)
	}

	return nil
}
