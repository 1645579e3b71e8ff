package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/kolbasa/apk-update/internal/archive"
	"github.com/kolbasa/apk-update/internal/config"
	"github.com/kolbasa/apk-update/internal/domain/bundle"
	"github.com/kolbasa/apk-update/internal/file"
	"github.com/kolbasa/apk-update/internal/logger"
	"github.com/kolbasa/apk-update/internal/repository/manifest"
	"github.com/kolbasa/apk-update/internal/service/appinfo"
	"github.com/kolbasa/apk-update/internal/version"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional settings file; see config.Load for the lookup order.
	ConfigPath string
	// SourcePath is the application file to package.
	SourcePath string
	// OutputPath is the update directory or an explicit archive path ending in ".zip".
	OutputPath string
	// Password encrypts the archive entry when not empty.
	Password string
	// Stdout receives the progress line; os.Stdout when nil.
	Stdout io.Writer
}

// packager runs the pipeline for a single update.
// It is unexported; callers should use Run, which loads settings first.
type packager struct {
	// cfg holds the validated settings.
	cfg *config.Config
	// fs is the filesystem holding the application and the archive.
	fs afero.Fs
	// open reads application packages.
	open appinfo.Opener
	// stdout receives progress output.
	stdout io.Writer
}

var (
	// ErrSourceNotFound is returned when the application file does not exist.
	ErrSourceNotFound = errors.New("application file not found")

	// errOptionsAreNotSet is returned when Run gets nil options.
	errOptionsAreNotSet = errors.New("options are not set")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, version.Name)

	if opts == nil {
		return errOptionsAreNotSet
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	pkg := newPackager(cfg, afero.NewOsFs(), appinfo.OpenPackage, opts.Stdout)

	if _, err = pkg.Run(ctx, opts); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Update packaged successfully")

	return nil
}

// newPackager creates a packager over the given filesystem and package opener.
func newPackager(cfg *config.Config, fs afero.Fs, open appinfo.Opener, stdout io.Writer) *packager {
	if stdout == nil {
		stdout = os.Stdout
	}

	return &packager{
		cfg:    cfg,
		fs:     fs,
		open:   open,
		stdout: stdout,
	}
}

// Run builds the archive and the manifest and returns the saved manifest.
func (p *packager) Run(ctx context.Context, opts *Options) (*bundle.Manifest, error) {
	paths := bundle.ResolvePaths(opts.SourcePath, opts.OutputPath)
	ctx = logger.WithKV(ctx, "apk", paths.APKName)

	logger.DebugKV(ctx, "Resolved update paths",
		"update_path", paths.UpdatePath,
		"zip_path", paths.ZipPath,
		"manifest_path", paths.ManifestPath,
	)

	exists, err := file.Exists(p.fs, paths.APKPath)
	if err != nil {
		return nil, fmt.Errorf("check application file: %w", err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: %w", paths.APKPath, ErrSourceNotFound)
	}

	if err = file.PrepareDir(p.fs, paths.UpdatePath, paths.ZipPath, paths.ManifestPath); err != nil {
		return nil, fmt.Errorf("prepare update directory: %w", err)
	}

	format := archive.FormatFor(opts.Password)

	if err = p.compress(ctx, paths, format); err != nil {
		return nil, err
	}

	desc, err := p.describe(ctx, paths)
	if err != nil {
		return nil, err
	}

	if p.cfg.VerifyArchive {
		if err = archive.Verify(p.fs, paths.ZipPath, paths.APKName, opts.Password, desc.Checksum); err != nil {
			return nil, fmt.Errorf("verify archive: %w", err)
		}

		logger.Info(ctx, "Archive content matches the application checksum")
	}

	repo := manifest.NewFileRepository(p.fs, paths.ManifestPath, p.cfg.FileMode)

	logger.InfoKV(ctx, "Saving update manifest", "path", repo.Path())

	if err = repo.Save(ctx, desc); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	p.printNextSteps(ctx, paths)

	return desc, nil
}

// compress writes the archive and reports progress on stdout.
func (p *packager) compress(ctx context.Context, paths bundle.Paths, format archive.Format) error {
	suffix := ""
	if format.Encrypted() {
		suffix = " with password"
	}

	_, _ = fmt.Fprintf(p.stdout, "Compressing update%s... ", suffix)

	builder := archive.NewBuilder(p.fs, format, archive.WithFileMode(p.cfg.FileMode))

	written, err := builder.Build(ctx, paths.APKPath, paths.APKName, paths.ZipPath)
	if err != nil {
		_, _ = fmt.Fprintln(p.stdout)

		return fmt.Errorf("build archive: %w", err)
	}

	_, _ = fmt.Fprintln(p.stdout, "done.")

	logger.DebugKV(ctx, "Archive written",
		"path", paths.ZipPath,
		"format", format.Name(),
		"size", humanize.IBytes(uint64(written)), //nolint:gosec // Lengths are never negative.
	)

	return nil
}

// describe gathers the manifest fields concurrently once the archive is complete.
func (p *packager) describe(ctx context.Context, paths bundle.Paths) (*bundle.Manifest, error) {
	desc := &bundle.Manifest{Name: paths.APKName}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		size, err := file.Size(p.fs, paths.APKPath)
		if err != nil {
			return fmt.Errorf("measure application: %w", err)
		}

		desc.Size = size

		return nil
	})

	group.Go(func() error {
		size, err := file.Size(p.fs, paths.ZipPath)
		if err != nil {
			return fmt.Errorf("measure archive: %w", err)
		}

		desc.CompressedSize = size

		return nil
	})

	group.Go(func() error {
		checksum, err := file.Checksum(p.fs, paths.APKPath)
		if err != nil {
			return fmt.Errorf("hash application: %w", err)
		}

		desc.Checksum = checksum

		return nil
	})

	group.Go(func() error {
		info, err := appinfo.Extract(groupCtx, p.open, paths.APKPath, p.cfg.DefaultLocale)
		if err != nil {
			return fmt.Errorf("extract app info: %w", err)
		}

		desc.App = info

		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Described update",
		"size", humanize.IBytes(uint64(desc.Size)),                      //nolint:gosec // Lengths are never negative.
		"compressed_size", humanize.IBytes(uint64(desc.CompressedSize)), //nolint:gosec // Lengths are never negative.
		"checksum", desc.Checksum,
		"app", desc.App.Name,
		"package", desc.App.Package,
		"version", desc.App.Version.Name,
	)

	return desc, nil
}

// printNextSteps logs which files have to be published.
func (p *packager) printNextSteps(ctx context.Context, paths bundle.Paths) {
	var builder strings.Builder

	builder.WriteString("Upload the following files to the update server:\n")
	builder.WriteString(paths.ZipPath)
	builder.WriteString(",\n")
	builder.WriteString(paths.ManifestPath)

	logger.Info(ctx, builder.String())
}
