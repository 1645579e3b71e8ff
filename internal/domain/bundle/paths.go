package bundle

import (
	"path/filepath"
	"strings"
)

const (
	// ArchiveExtension is the extension of the produced archive.
	ArchiveExtension = ".zip"
	// ManifestExtension is the extension of the produced manifest.
	ManifestExtension = ".json"
)

// Paths holds every filesystem location used by a packaging run.
// It is computed once by ResolvePaths and passed by value afterwards.
type Paths struct {
	// APKName is the file name of the source application, used as the archive entry name.
	APKName string
	// APKPath is the joined path of the source application.
	APKPath string
	// UpdatePath is the directory receiving the archive and the manifest.
	UpdatePath string
	// ZipPath is the target archive path.
	ZipPath string
	// ManifestPath is the target manifest path.
	ManifestPath string
}

// ResolvePaths derives the bundle locations from the source application path and the output path.
//
// An output ending in ".zip" names the archive explicitly: its stem names both
// artifacts and its directory receives them. Any other output is treated as a
// directory, and the artifacts are named after the source application's stem.
// No validation happens here; malformed paths surface as filesystem errors later.
func ResolvePaths(source, output string) Paths {
	sourceDir, sourceBase := filepath.Split(source)
	outputDir, outputBase := filepath.Split(output)

	var stem, updatePath string
	if isArchiveName(outputBase) {
		stem = trimExt(outputBase)
		updatePath = filepath.Clean(dirOrDot(outputDir))
	} else {
		stem = trimExt(sourceBase)
		updatePath = filepath.Join(outputDir, outputBase)
	}

	return Paths{
		APKName:      sourceBase,
		APKPath:      filepath.Join(sourceDir, sourceBase),
		UpdatePath:   updatePath,
		ZipPath:      filepath.Join(updatePath, stem+ArchiveExtension),
		ManifestPath: filepath.Join(updatePath, stem+ManifestExtension),
	}
}

// isArchiveName reports whether base names an archive, excluding a bare ".zip" dotfile.
func isArchiveName(base string) bool {
	return filepath.Ext(base) == ArchiveExtension && trimExt(base) != ""
}

// trimExt returns the base name without its last extension.
func trimExt(base string) string {
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// dirOrDot maps an empty directory component to the working directory.
func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}

	return dir
}
