// Package appinfo extracts the application identity recorded in an update manifest.
//
// Extract reads the package manifest through a Reader and resolves the
// application label. A literal label is used as is. A resource reference is
// resolved to the value of the default locale, falling back to the first
// value in table order.
package appinfo
