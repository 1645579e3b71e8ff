package file

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
)

// ErrIsDirectory is returned when a regular file is expected but a directory is found.
var ErrIsDirectory = errors.New("is a directory")

// Size returns the byte length of the regular file at path.
func Size(fs afero.Fs, path string) (int64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return 0, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}

	return info.Size(), nil
}

// Exists reports whether a regular file exists at path.
// Errors other than "not exist" are returned to the caller.
func Exists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return false, nil
		}

		return false, err
	}

	return !info.IsDir(), nil
}
