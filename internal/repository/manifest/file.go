package manifest

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/spf13/afero"

	"github.com/kolbasa/apk-update/internal/domain/bundle"
	"github.com/kolbasa/apk-update/internal/logger"
)

// DefaultFileMode is the permission set of written manifests.
const DefaultFileMode os.FileMode = 0o644

// Repository defines persistence operations for update manifests.
type Repository interface {
	Load(ctx context.Context) (*bundle.Manifest, error)
	Save(ctx context.Context, manifest *bundle.Manifest) error
}

// FileRepository stores a manifest as a JSON file.
//
// On the operating system filesystem the file is swapped in with go-update,
// which verifies the written bytes against their SHA-512 checksum. Other
// filesystems get the same new-file-then-rename sequence through afero.
type FileRepository struct {
	// fs holds the manifest.
	fs afero.Fs
	// path is the location of the manifest.
	path string
	// mode is the permission set of the written file.
	mode os.FileMode
	// mu serializes access to the manifest file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")

	// errManifestIsNotSet is returned when Save gets a nil manifest.
	errManifestIsNotSet = errors.New("manifest is not set")
)

// NewFileRepository creates a repository for the manifest at path on fs.
// A zero mode selects DefaultFileMode.
func NewFileRepository(fs afero.Fs, path string, mode os.FileMode) *FileRepository {
	if mode == 0 {
		mode = DefaultFileMode
	}

	return &FileRepository{
		fs:   fs,
		path: filepath.Clean(path),
		mode: mode,
	}
}

// Path returns the manifest location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the manifest.
func (r *FileRepository) Load(_ context.Context) (*bundle.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	var manifest bundle.Manifest
	if err = json.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest file: %w", err)
	}

	return &manifest, nil
}

// Save replaces the manifest with a single JSON object.
// On failure no manifest is left at the path unless one existed before.
func (r *FileRepository) Save(ctx context.Context, manifest *bundle.Manifest) error {
	if manifest == nil {
		return errManifestIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	logger.DebugKV(ctx, "Writing manifest", "path", r.path, "bytes", len(data))

	if _, ok := r.fs.(*afero.OsFs); ok {
		err = r.apply(ctx, data)
	} else {
		err = r.rename(data)
	}

	if err != nil {
		return fmt.Errorf("write manifest file: %w", err)
	}

	return nil
}

// apply swaps the manifest in with go-update.
func (r *FileRepository) apply(ctx context.Context, data []byte) error {
	// The target is moved aside during the update, so it has to exist beforehand.
	created, err := r.ensureTarget()
	if err != nil {
		return err
	}

	checksum := sha512.Sum512(data)

	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: r.mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA512,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		r.discard(ctx, r.tempPath("new"))

		if created {
			r.discard(ctx, r.path)
		}

		if rollbackErr := goupdate.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("%w (rollback: %w)", err, rollbackErr)
		}

		return err
	}

	// go-update only hides the previous file when it cannot remove it.
	if _, err = r.fs.Stat(r.tempPath("old")); err == nil {
		r.discard(ctx, r.tempPath("old"))
	}

	return nil
}

// rename writes a sibling file and renames it over the manifest.
func (r *FileRepository) rename(data []byte) error {
	newPath := r.tempPath("new")

	if err := afero.WriteFile(r.fs, newPath, data, r.mode); err != nil {
		_ = r.fs.Remove(newPath)

		return err
	}

	if err := r.fs.Rename(newPath, r.path); err != nil {
		_ = r.fs.Remove(newPath)

		return err
	}

	return nil
}

// ensureTarget creates an empty manifest when none exists and reports whether it did.
func (r *FileRepository) ensureTarget() (bool, error) {
	_, err := r.fs.Stat(r.path)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat manifest file: %w", err)
	}

	placeholder, err := r.fs.OpenFile(r.path, os.O_CREATE|os.O_WRONLY, r.mode)
	if err != nil {
		return false, fmt.Errorf("create manifest file: %w", err)
	}

	return true, placeholder.Close()
}

// tempPath returns the hidden sibling go-update uses with the given suffix.
func (r *FileRepository) tempPath(suffix string) string {
	dir, name := filepath.Split(r.path)

	return filepath.Join(dir, "."+name+"."+suffix)
}

// discard removes a leftover file, logging failures.
func (r *FileRepository) discard(ctx context.Context, path string) {
	err := r.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove leftover manifest file", "path", path, "error", err)
	}
}
