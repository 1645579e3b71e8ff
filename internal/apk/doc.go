// Package apk reads application metadata from Android packages.
//
// The binary AndroidManifest.xml is decoded with avast/apkparser without
// resource substitution, so resource references are reported as such. The
// compiled resource table is decoded separately because a reference resolves
// to one value per configuration and callers choose among the locales.
package apk
