package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// TestPrepareDir_RemovesStaleArtifacts deletes previous outputs and keeps unrelated files.
func TestPrepareDir_RemovesStaleArtifacts(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/MyApp.zip", []byte("old zip"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/out/MyApp.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/out/keep.txt", []byte("keep"), 0o644))

	require.NoError(t, PrepareDir(fs, "/out", "/out/MyApp.zip", "/out/MyApp.json"))

	for _, gone := range []string{"/out/MyApp.zip", "/out/MyApp.json"} {
		ok, err := afero.Exists(fs, gone)
		require.NoError(t, err)
		require.False(t, ok, gone)
	}

	ok, err := afero.Exists(fs, "/out/keep.txt")
	require.NoError(t, err)
	require.True(t, ok)
}

// TestPrepareDir_MissingArtifactsAreSkipped is idempotent on a clean directory.
func TestPrepareDir_MissingArtifactsAreSkipped(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.Mkdir("/out", DefaultDirMode))

	require.NoError(t, PrepareDir(fs, "/out", "/out/MyApp.zip", "/out/MyApp.json"))
	require.NoError(t, PrepareDir(fs, "/out", "/out/MyApp.zip", "/out/MyApp.json"))
}

// TestPrepareDir_CreatesDirectory creates a single missing level.
func TestPrepareDir_CreatesDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "out")

	require.NoError(t, PrepareDir(afero.NewOsFs(), dir, filepath.Join(dir, "MyApp.zip")))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

// TestPrepareDir_MissingParentFails does not create intermediate directories.
func TestPrepareDir_MissingParentFails(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "missing", "out")

	err := PrepareDir(afero.NewOsFs(), dir)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Dir(dir))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestPrepareDir_FileInTheWay rejects an update path that is a regular file.
func TestPrepareDir_FileInTheWay(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out", []byte("file"), 0o644))

	require.ErrorIs(t, PrepareDir(fs, "/out"), ErrNotDirectory)
}
