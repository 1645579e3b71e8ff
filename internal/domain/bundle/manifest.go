package bundle

// Version identifies an application release.
type Version struct {
	// Code is the monotonically increasing integer version (android:versionCode).
	Code int `json:"code"`
	// Name is the user-facing version string (android:versionName).
	Name string `json:"name"`
}

// AppInfo is the identity of the packaged application.
type AppInfo struct {
	// Name is the display label, resolved to the default locale when localized.
	Name string `json:"name"`
	// Package is the application id.
	Package string `json:"package"`
	// Version is the release version.
	Version Version `json:"version"`
}

// Manifest describes a published update bundle.
// Field order is part of the wire format consumed by update clients.
type Manifest struct {
	// Name is the original file name of the application.
	Name string `json:"name"`
	// Size is the uncompressed byte length of the application.
	Size int64 `json:"size"`
	// CompressedSize is the byte length of the archive.
	CompressedSize int64 `json:"compressedSize"`
	// Checksum is the lowercase hex MD5 digest of the application.
	Checksum string `json:"checksum"`
	// App is the application identity.
	App AppInfo `json:"app"`
}
