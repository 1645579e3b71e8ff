// Package file holds filesystem helpers shared by the packaging stages:
// streaming content hashes, size lookups and preparation of the output
// directory. Every helper works on an afero.Fs so the stages can be exercised
// against an in-memory filesystem.
package file
