package apk

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/avast/apkparser"
)

const (
	manifestEntry  = "AndroidManifest.xml"
	resourcesEntry = "resources.arsc"
)

var (
	// ErrNoManifest is returned when the package has no AndroidManifest.xml.
	ErrNoManifest = errors.New("apk: AndroidManifest.xml not found")

	// ErrNoResources is returned when the package has no resources.arsc.
	ErrNoResources = errors.New("apk: resources.arsc not found")

	// ErrResourceNotFound is returned when the resource table has no string value for an id.
	ErrResourceNotFound = errors.New("apk: resource not found")
)

// Package is an opened Android package.
type Package struct {
	zip *apkparser.ZipReader

	tableOnce sync.Once
	table     *resourceTable
	tableErr  error
}

// Open opens the package at path.
func Open(path string) (*Package, error) {
	zr, err := apkparser.OpenZip(path)
	if err != nil {
		return nil, fmt.Errorf("apk: open %s: %w", path, err)
	}

	return &Package{zip: zr}, nil
}

// Close releases the package file.
func (p *Package) Close() error {
	return p.zip.Close()
}

// ManifestInfo decodes the identity fields of the binary manifest.
func (p *Package) ManifestInfo() (ManifestInfo, error) {
	f, ok := p.zip.File[manifestEntry]
	if !ok {
		return ManifestInfo{}, ErrNoManifest
	}

	var decoded bytes.Buffer

	err := readEntry(f, func(r io.Reader) error {
		decoded.Reset()

		enc := xml.NewEncoder(&decoded)
		if err := apkparser.ParseXml(r, enc, nil); err != nil {
			return err
		}

		return enc.Flush()
	})
	if err != nil {
		return ManifestInfo{}, fmt.Errorf("apk: decode manifest: %w", err)
	}

	return decodeManifest(decoded.Bytes())
}

// Resolve returns the string values of resource id in table order, one per configuration.
func (p *Package) Resolve(id uint32) ([]Candidate, error) {
	p.tableOnce.Do(func() {
		p.table, p.tableErr = p.loadTable()
	})

	if p.tableErr != nil {
		return nil, p.tableErr
	}

	candidates, ok := p.table.values[id]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%08x", ErrResourceNotFound, id)
	}

	return slices.Clone(candidates), nil
}

func (p *Package) loadTable() (*resourceTable, error) {
	f, ok := p.zip.File[resourcesEntry]
	if !ok {
		return nil, ErrNoResources
	}

	var data []byte

	err := readEntry(f, func(r io.Reader) error {
		var err error

		data, err = io.ReadAll(r)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apk: read resources: %w", err)
	}

	table, err := parseResourceTable(data)
	if err != nil {
		return nil, fmt.Errorf("apk: parse resources: %w", err)
	}

	return table, nil
}

// readEntry calls fn for each copy of the entry until one succeeds.
// Packages may carry duplicate entries and apkparser exposes them all.
func readEntry(f *apkparser.ZipReaderFile, fn func(io.Reader) error) error {
	if err := f.Open(); err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	lastErr := io.ErrUnexpectedEOF

	for f.Next() {
		if lastErr = fn(f); lastErr == nil {
			return nil
		}
	}

	return lastErr
}
