// Package manifest persists the update manifest next to its archive.
//
// The FileRepository writes the manifest as compact JSON and swaps it into
// place atomically so clients never observe a partially written file.
package manifest
