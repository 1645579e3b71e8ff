package appinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kolbasa/apk-update/internal/apk"
	"github.com/kolbasa/apk-update/internal/domain/bundle"
	"github.com/kolbasa/apk-update/internal/logger"
)

// ErrNoLabel is returned when a label reference has no values.
var ErrNoLabel = errors.New("application label has no values")

// Reader exposes the parts of an application package needed for its identity.
type Reader interface {
	ManifestInfo() (apk.ManifestInfo, error)
	Resolve(id uint32) ([]apk.Candidate, error)
	Close() error
}

// Opener opens the package at path.
type Opener func(path string) (Reader, error)

// OpenPackage opens an APK file.
func OpenPackage(path string) (Reader, error) {
	pkg, err := apk.Open(path)
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

// Extract reads the identity of the package at path.
// The reader is closed before Extract returns, also on failure.
func Extract(ctx context.Context, open Opener, path, locale string) (info bundle.AppInfo, err error) {
	if open == nil {
		open = OpenPackage
	}

	reader, err := open(path)
	if err != nil {
		return bundle.AppInfo{}, fmt.Errorf("open package: %w", err)
	}

	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close package: %w", closeErr)
		}
	}()

	manifest, err := reader.ManifestInfo()
	if err != nil {
		return bundle.AppInfo{}, fmt.Errorf("read manifest: %w", err)
	}

	name, err := ResolveLabel(ctx, reader, manifest.ApplicationLabel, locale)
	if err != nil {
		return bundle.AppInfo{}, fmt.Errorf("resolve label: %w", err)
	}

	return bundle.AppInfo{
		Name:    name,
		Package: manifest.Package,
		Version: bundle.Version{
			Code: manifest.VersionCode,
			Name: manifest.VersionName,
		},
	}, nil
}

// ResolveLabel returns label itself unless it is a resource reference.
func ResolveLabel(ctx context.Context, reader Reader, label, locale string) (string, error) {
	id, ok := apk.ParseReference(label)
	if !ok {
		return label, nil
	}

	candidates, err := reader.Resolve(id)
	if err != nil {
		return "", err
	}

	chosen, ok := SelectCandidate(candidates, locale)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoLabel, label)
	}

	logger.DebugKV(ctx, "Resolved application label",
		"reference", label,
		"locale", chosen.Locale.String(),
		"candidates", len(candidates),
	)

	return chosen.Value, nil
}

// SelectCandidate picks the first candidate in language locale, else the first one.
func SelectCandidate(candidates []apk.Candidate, locale string) (apk.Candidate, bool) {
	if len(candidates) == 0 {
		return apk.Candidate{}, false
	}

	for _, c := range candidates {
		if c.Locale.Language == locale {
			return c, true
		}
	}

	return candidates[0], true
}
