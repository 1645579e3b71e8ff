package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

const (
	// DefaultFileMode is the permission set of the produced archive.
	DefaultFileMode os.FileMode = 0o644

	// entryMode is recorded as the Unix mode of the archived application.
	entryMode os.FileMode = 0o644

	// dosEpochYear is the first year representable in MS-DOS timestamps.
	dosEpochYear = 1980
)

// Builder writes single-entry archives.
type Builder struct {
	// fs is the filesystem holding both the source and the archive.
	fs afero.Fs
	// format selects compression and encryption.
	format Format
	// mode is the permission set of created archives.
	mode os.FileMode
}

// Option configures a Builder.
type Option func(*Builder)

// WithFileMode sets the permission set of created archives.
func WithFileMode(mode os.FileMode) Option {
	return func(b *Builder) {
		if mode != 0 {
			b.mode = mode
		}
	}
}

// NewBuilder returns a Builder writing archives in the given format.
func NewBuilder(fs afero.Fs, format Format, opts ...Option) *Builder {
	if format == nil {
		format = Plain()
	}

	b := &Builder{
		fs:     fs,
		format: format,
		mode:   DefaultFileMode,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Format returns the format the builder was constructed with.
func (b *Builder) Format() Format {
	return b.format
}

// Build writes an archive at destPath containing sourcePath as entryName and
// returns the archive length. It returns only after the central directory has
// been written and the archive has been synced and closed. A partial archive
// may be left at destPath on failure.
func (b *Builder) Build(ctx context.Context, sourcePath, entryName, destPath string) (int64, error) {
	src, err := b.fs.Open(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}

	defer func() {
		_ = src.Close()
	}()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	dst, err := b.fs.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, b.mode)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	counter := &countingWriter{w: dst}

	if err = b.write(ctx, counter, src, entryName, info.ModTime()); err != nil {
		var result *multierror.Error

		result = multierror.Append(result, err, dst.Close())

		return 0, result.ErrorOrNil()
	}

	if err = dst.Sync(); err != nil {
		_ = dst.Close()

		return 0, fmt.Errorf("sync archive: %w", err)
	}

	if err = dst.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}

	return counter.n, nil
}

// write streams src into a new zip written to w and finalizes it.
func (b *Builder) write(ctx context.Context, w io.Writer, src io.Reader, entryName string, modified time.Time) error {
	zw := zip.NewWriter(w)

	fh := &zip.FileHeader{
		Name:   entryName,
		Method: zip.Deflate,
	}
	fh.SetMode(entryMode)
	fh.ModifiedDate, fh.ModifiedTime = msDosTime(modified)

	if err := b.format.Apply(zw, fh); err != nil {
		return fmt.Errorf("apply %s format: %w", b.format.Name(), err)
	}

	entry, err := zw.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entryName, err)
	}

	if _, err = io.Copy(entry, &contextReader{ctx: ctx, r: src}); err != nil {
		return fmt.Errorf("compress %s: %w", entryName, err)
	}

	// Close writes the central directory; the archive is incomplete before it returns.
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	return nil
}

// msDosTime converts t to MS-DOS date and time fields, clamping dates before 1980.
func msDosTime(t time.Time) (uint16, uint16) {
	if t.Year() < dosEpochYear {
		t = time.Date(dosEpochYear, time.January, 1, 0, 0, 0, 0, time.Local)
	}

	date := uint16(t.Day() + int(t.Month())<<5 + (t.Year()-dosEpochYear)<<9) //nolint:gosec // Bounded by the DOS range.
	clock := uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)              //nolint:gosec // Bounded by the DOS range.

	return date, clock
}

// countingWriter counts bytes passed to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx // Scoped to a single Build call.
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
