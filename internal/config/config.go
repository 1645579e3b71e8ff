package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kolbasa/apk-update/internal/logger"
)

// Config holds the tunables of the packaging pipeline.
type Config struct {
	// LogLevel is the minimum level of diagnostic messages written to stderr.
	LogLevel string `yaml:"log_level"`
	// DefaultLocale is the language used to pick the application label among localized values.
	DefaultLocale string `yaml:"default_locale"`
	// VerifyArchive re-reads the produced archive and compares its content checksum with the source.
	VerifyArchive bool `yaml:"verify_archive"`
	// FileMode is the permission set applied to the produced archive and manifest.
	FileMode os.FileMode `yaml:"file_mode"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "apk-update.yaml"

	// EnvConfigPath names the environment variable holding an explicit settings path.
	EnvConfigPath = "APK_UPDATE_CONFIG"

	// DefaultLogLevel is used when the settings do not name a level.
	DefaultLogLevel = "info"

	// DefaultLocale is the language tag preferred for the application label.
	DefaultLocale = "en"

	// DefaultFileMode is applied to produced artifacts.
	DefaultFileMode os.FileMode = 0o644

	// DefaultFilePermissions is the permission set of the settings file itself.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned when log_level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
	// errInvalidLocale is returned when default_locale is not a language code.
	errInvalidLocale = errors.New("invalid default locale")

	// languagePattern matches ISO 639 two- or three-letter codes.
	languagePattern = regexp.MustCompile(`^[a-z]{2,3}$`)
)

// Default returns settings with every field set to its default.
func Default() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		DefaultLocale: DefaultLocale,
		FileMode:      DefaultFileMode,
	}
}

// Load reads configuration from the provided path and validates it.
// An empty path falls back to EnvConfigPath and then to DefaultConfigFilename;
// only the implicit default file may be absent.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
		explicit = path != ""
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the provided settings and fills in defaults for empty fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(settings.LogLevel) == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%q: %w", settings.LogLevel, errUnknownLogLevel)
	}

	settings.DefaultLocale = strings.ToLower(strings.TrimSpace(settings.DefaultLocale))
	if settings.DefaultLocale == "" {
		settings.DefaultLocale = DefaultLocale
	}

	if !languagePattern.MatchString(settings.DefaultLocale) {
		return fmt.Errorf("%q: %w", settings.DefaultLocale, errInvalidLocale)
	}

	if settings.FileMode == 0 {
		settings.FileMode = DefaultFileMode
	}

	settings.FileMode &= os.ModePerm

	return nil
}
