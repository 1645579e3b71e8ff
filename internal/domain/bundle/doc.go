// Package bundle contains the core domain types of an update bundle.
//
// It defines Paths (where the bundle of a run is written), AppInfo (the
// identity of the packaged application) and Manifest (the JSON sidecar
// published next to the archive), together with the path resolution rules.
package bundle
