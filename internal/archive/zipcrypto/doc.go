// Package zipcrypto implements the traditional PKWARE zip encryption
// ("ZipCrypto") described in APPNOTE.TXT section 6.1.
//
// The cipher is weak by modern standards; it is used because every unzip
// tool and the update clients consuming the bundles can decrypt it.
package zipcrypto
