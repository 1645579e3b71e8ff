package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// DefaultDirMode is the permission set of a freshly created update directory.
const DefaultDirMode os.FileMode = 0o755

// ErrNotDirectory is returned when the update path exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// PrepareDir makes dir ready to receive a new bundle.
//
// When dir exists, the given artifacts left by a previous run are removed;
// artifacts that do not exist are skipped and every removal failure is reported.
// When dir does not exist, it is created without its parents; a missing parent is an error.
func PrepareDir(fs afero.Fs, dir string, artifacts ...string) error {
	info, err := fs.Stat(dir)

	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	case err == nil:
		return removeArtifacts(fs, artifacts)
	case errors.Is(err, afero.ErrFileNotFound):
		if err = fs.Mkdir(dir, DefaultDirMode); err != nil {
			return fmt.Errorf("create update directory: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("stat update directory: %w", err)
	}
}

// removeArtifacts deletes existing artifacts and aggregates failures.
func removeArtifacts(fs afero.Fs, artifacts []string) error {
	var result *multierror.Error

	for _, path := range artifacts {
		err := fs.Remove(path)
		if err == nil || errors.Is(err, afero.ErrFileNotFound) {
			continue
		}

		result = multierror.Append(result, fmt.Errorf("remove stale %s: %w", path, err))
	}

	return result.ErrorOrNil()
}
