package apk

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ManifestInfo holds the identity fields of an application manifest.
type ManifestInfo struct {
	// Package is the application id.
	Package string
	// VersionCode is the integer version.
	VersionCode int
	// VersionName is the user-visible version.
	VersionName string
	// ApplicationLabel is a literal name or a resource reference such as "@7f0b0001".
	ApplicationLabel string
}

// LabelReference reports whether the label refers to a resource and returns its id.
func (m ManifestInfo) LabelReference() (uint32, bool) {
	return ParseReference(m.ApplicationLabel)
}

// ParseReference parses "@7f0b0001" or "@0x7f0b0001" into a resource id.
// Ids have the form 0xPPTTEEEE with nonzero package and type bytes, so short
// values such as "@cafe" are literal labels.
func ParseReference(value string) (uint32, bool) {
	hex, ok := strings.CutPrefix(value, "@")
	if !ok {
		return 0, false
	}

	hex = strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X")

	id, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || id>>24 == 0 || id>>16&0xFF == 0 {
		return 0, false
	}

	return uint32(id), true
}

type manifestXML struct {
	XMLName     xml.Name `xml:"manifest"`
	Package     string   `xml:"package,attr"`
	VersionCode string   `xml:"versionCode,attr"`
	VersionName string   `xml:"versionName,attr"`
	Application struct {
		Label string `xml:"label,attr"`
	} `xml:"application"`
}

func decodeManifest(data []byte) (ManifestInfo, error) {
	var m manifestXML
	if err := xml.Unmarshal(data, &m); err != nil {
		return ManifestInfo{}, fmt.Errorf("apk: unmarshal manifest: %w", err)
	}

	info := ManifestInfo{
		Package:          m.Package,
		VersionName:      m.VersionName,
		ApplicationLabel: m.Application.Label,
	}

	if m.VersionCode != "" {
		code, err := strconv.Atoi(m.VersionCode)
		if err != nil {
			return ManifestInfo{}, fmt.Errorf("apk: invalid versionCode %q: %w", m.VersionCode, err)
		}

		info.VersionCode = code
	}

	return info, nil
}
