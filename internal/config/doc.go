// Package config defines the optional settings of apk-update and provides
// helpers to load, validate and save them in YAML format.
//
// Settings are never required: a missing default file yields Default().
// The file location can be overridden with the APK_UPDATE_CONFIG environment
// variable, since the command itself accepts only positional arguments.
package config
