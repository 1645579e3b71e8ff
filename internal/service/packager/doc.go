// Package packager turns an Android application into a distributable update.
//
// Run resolves the output locations, prepares the update directory and writes
// a maximally compressed archive holding the application, optionally
// encrypted with a password. It then measures both files, hashes the
// application and reads its identity concurrently, and finally saves the JSON
// manifest next to the archive. Any failure aborts the run and is returned to
// the caller with the failing stage in its message.
package packager
