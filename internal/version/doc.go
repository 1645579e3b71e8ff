// Package version exposes build metadata of apk-update.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags
// (-X github.com/kolbasa/apk-update/internal/version.Version=...) and default to
// values suitable for local builds.
package version
