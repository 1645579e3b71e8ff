package packager

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Matches manifest checksums.
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/kolbasa/apk-update/internal/apk"
	"github.com/kolbasa/apk-update/internal/archive"
	"github.com/kolbasa/apk-update/internal/config"
	"github.com/kolbasa/apk-update/internal/domain/bundle"
	"github.com/kolbasa/apk-update/internal/repository/manifest"
	"github.com/kolbasa/apk-update/internal/service/appinfo"
)

type fakePackage struct{}

func (fakePackage) ManifestInfo() (apk.ManifestInfo, error) {
	return apk.ManifestInfo{
		Package:          "com.x",
		VersionCode:      3,
		VersionName:      "1.2.0",
		ApplicationLabel: "@7f0b0001",
	}, nil
}

func (fakePackage) Resolve(uint32) ([]apk.Candidate, error) {
	return []apk.Candidate{
		{Locale: apk.Locale{Language: "fr"}, Value: "MonApp"},
		{Locale: apk.Locale{Language: "en"}, Value: "MyApp"},
	}, nil
}

func (fakePackage) Close() error { return nil }

func fakeOpener(string) (appinfo.Reader, error) {
	return fakePackage{}, nil
}

var wantApp = bundle.AppInfo{
	Name:    "MyApp",
	Package: "com.x",
	Version: bundle.Version{Code: 3, Name: "1.2.0"},
}

// writeSource creates a fake application file of about 2 KiB.
func writeSource(t *testing.T, dir string) (string, []byte) {
	t.Helper()

	content := bytes.Repeat([]byte("fake apk payload "), 120)
	path := filepath.Join(dir, "MyApp.apk")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path, content
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // Matches manifest checksums.

	return hex.EncodeToString(sum[:])
}

func newTestPackager(cfg *config.Config, stdout *bytes.Buffer) *packager {
	if cfg == nil {
		cfg = config.Default()
	}

	return newPackager(cfg, afero.NewOsFs(), fakeOpener, stdout)
}

func loadManifest(t *testing.T, path string) *bundle.Manifest {
	t.Helper()

	m, err := manifest.NewFileRepository(afero.NewOsFs(), path, 0).Load(context.Background())
	require.NoError(t, err)

	return m
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)

	return info.Size()
}

// TestRun_OutputDirectory covers packaging into a directory that does not exist yet.
func TestRun_OutputDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source, content := writeSource(t, dir)
	output := filepath.Join(dir, "out")

	var stdout bytes.Buffer

	got, err := newTestPackager(nil, &stdout).Run(context.Background(), &Options{
		SourcePath: source,
		OutputPath: output,
	})
	require.NoError(t, err)
	require.Equal(t, "Compressing update... done.\n", stdout.String())

	zipPath := filepath.Join(output, "MyApp.zip")
	manifestPath := filepath.Join(output, "MyApp.json")

	saved := loadManifest(t, manifestPath)
	require.Equal(t, got, saved)
	require.Equal(t, &bundle.Manifest{
		Name:           "MyApp.apk",
		Size:           int64(len(content)),
		CompressedSize: fileSize(t, zipPath),
		Checksum:       md5Hex(content),
		App:            wantApp,
	}, saved)

	require.NoError(t, archive.Verify(afero.NewOsFs(), zipPath, "MyApp.apk", "", saved.Checksum))
}

// TestRun_ExplicitArchivePath covers an output path naming the archive.
func TestRun_ExplicitArchivePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source, _ := writeSource(t, dir)
	output := filepath.Join(dir, "release.zip")

	_, err := newTestPackager(nil, &bytes.Buffer{}).Run(context.Background(), &Options{
		SourcePath: source,
		OutputPath: output,
	})
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(dir, "release.zip"))
	require.FileExists(t, filepath.Join(dir, "release.json"))
	require.NoFileExists(t, filepath.Join(dir, "release.zip", "MyApp.zip"))
}

// TestRun_Idempotent ensures a second run replaces the artifacts with equivalent ones.
func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source, _ := writeSource(t, dir)
	output := filepath.Join(dir, "out")
	pkg := newTestPackager(nil, &bytes.Buffer{})

	first, err := pkg.Run(context.Background(), &Options{SourcePath: source, OutputPath: output})
	require.NoError(t, err)

	second, err := pkg.Run(context.Background(), &Options{SourcePath: source, OutputPath: output})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, second, loadManifest(t, filepath.Join(output, "MyApp.json")))

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

// TestRun_Password ensures the archive only opens with the password.
func TestRun_Password(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source, content := writeSource(t, dir)
	output := filepath.Join(dir, "out")

	cfg := config.Default()
	cfg.VerifyArchive = true

	var stdout bytes.Buffer

	got, err := newTestPackager(cfg, &stdout).Run(context.Background(), &Options{
		SourcePath: source,
		OutputPath: output,
		Password:   "s3cret",
	})
	require.NoError(t, err)
	require.Equal(t, "Compressing update with password... done.\n", stdout.String())
	require.Equal(t, md5Hex(content), got.Checksum)

	zipPath := filepath.Join(output, "MyApp.zip")
	fs := afero.NewOsFs()

	require.NoError(t, archive.Verify(fs, zipPath, "MyApp.apk", "s3cret", got.Checksum))
	require.ErrorIs(t, archive.Verify(fs, zipPath, "MyApp.apk", "", got.Checksum), archive.ErrPasswordRequired)
	require.Error(t, archive.Verify(fs, zipPath, "MyApp.apk", "not the password", got.Checksum))
}

// TestRun_MemMapFs runs the whole pipeline on an in-memory filesystem.
func TestRun_MemMapFs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	content := bytes.Repeat([]byte("fake apk payload "), 120)
	require.NoError(t, fs.MkdirAll("/src", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/MyApp.apk", content, 0o644))

	cfg := config.Default()
	cfg.VerifyArchive = true

	got, err := newPackager(cfg, fs, fakeOpener, &bytes.Buffer{}).Run(context.Background(), &Options{
		SourcePath: "/src/MyApp.apk",
		OutputPath: "/out",
	})
	require.NoError(t, err)

	saved, err := manifest.NewFileRepository(fs, "/out/MyApp.json", 0).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, got, saved)
	require.Equal(t, md5Hex(content), saved.Checksum)
	require.Equal(t, wantApp, saved.App)

	info, err := fs.Stat("/out/MyApp.zip")
	require.NoError(t, err)
	require.Equal(t, info.Size(), saved.CompressedSize)
}

// TestRun_Failures ensures no manifest is written when a stage fails.
func TestRun_Failures(t *testing.T) {
	t.Parallel()

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		output := filepath.Join(dir, "out")

		_, err := newTestPackager(nil, &bytes.Buffer{}).Run(context.Background(), &Options{
			SourcePath: filepath.Join(dir, "missing.apk"),
			OutputPath: output,
		})
		require.ErrorIs(t, err, ErrSourceNotFound)
		require.NoDirExists(t, output)
	})

	t.Run("missing parent directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source, _ := writeSource(t, dir)

		_, err := newTestPackager(nil, &bytes.Buffer{}).Run(context.Background(), &Options{
			SourcePath: source,
			OutputPath: filepath.Join(dir, "missing", "out"),
		})
		require.Error(t, err)
	})

	t.Run("unreadable package", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		source, _ := writeSource(t, dir)
		output := filepath.Join(dir, "out")
		errBroken := errors.New("broken package")

		pkg := newPackager(config.Default(), afero.NewOsFs(), func(string) (appinfo.Reader, error) {
			return nil, errBroken
		}, &bytes.Buffer{})

		_, err := pkg.Run(context.Background(), &Options{SourcePath: source, OutputPath: output})
		require.ErrorIs(t, err, errBroken)
		require.NoFileExists(t, filepath.Join(output, "MyApp.json"))
	})
}

// TestRunEntryPoint covers the settings handling of the public entry point.
func TestRunEntryPoint(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Run(context.Background(), nil), errOptionsAreNotSet)

	dir := t.TempDir()
	source, _ := writeSource(t, dir)

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		SourcePath: source,
		OutputPath: filepath.Join(dir, "out"),
		Stdout:     &bytes.Buffer{},
	})
	require.Error(t, err)
	require.NoDirExists(t, filepath.Join(dir, "out"))
}
