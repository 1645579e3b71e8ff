// Package archive builds the single-entry zip archive of an update bundle.
//
// The Builder streams the application into a deflate entry compressed at the
// maximum level. Whether the entry is encrypted is decided by the Format the
// Builder is constructed with: Plain writes a standard archive, ZipCrypto
// encrypts the entry with a password. Verify reads an archive back and checks
// the entry against the checksum recorded for the source.
package archive
