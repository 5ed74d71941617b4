// Package config provides configuration loading and validation for the map server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the map server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Data sources. Each may be an http(s) URL or a filesystem path.
	FilterConfigURL    string `koanf:"filter_config_url"`
	MarkerMetadataURL  string `koanf:"marker_metadata_url"`
	BuildingRecordsURL string `koanf:"building_records_url"`
	BlocksGeoJSONURL   string `koanf:"blocks_geojson_url"`

	// BundleURL points at a single CBOR bundle carrying filter config,
	// marker metadata, and building records. When set it replaces the three
	// per-resource sources above.
	BundleURL string `koanf:"bundle_url"`

	// MapTiler basemap key, passed through to clients.
	MapTilerAPIKey string `koanf:"maptiler_api_key"`

	// Readiness probing of the map view before the engine accepts events.
	ReadyAttempts   int `koanf:"ready_attempts"`
	ReadyIntervalMS int `koanf:"ready_interval_ms"`

	// CORS allowed origins, comma separated. Empty allows all origins.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingFilterConfigURL    = errors.New("FILTER_CONFIG_URL is required unless BUNDLE_URL is set")
	ErrMissingMarkerMetadataURL  = errors.New("MARKER_METADATA_URL is required unless BUNDLE_URL is set")
	ErrMissingBuildingRecordsURL = errors.New("BUILDING_RECORDS_URL is required unless BUNDLE_URL is set")
	ErrMissingBlocksGeoJSONURL   = errors.New("BLOCKS_GEOJSON_URL is required")
	ErrInvalidPort               = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultReadyAttempts   = 20
	DefaultReadyIntervalMS = 250
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try SICA_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"SICA_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	readyAttempts, attemptsErr := getEnvIntOrDefault("READY_ATTEMPTS", k.Int("ready_attempts"), DefaultReadyAttempts)
	if attemptsErr != nil {
		loadErrs = append(loadErrs, attemptsErr)
	}

	readyInterval, intervalErr := getEnvIntOrDefault("READY_INTERVAL_MS", k.Int("ready_interval_ms"), DefaultReadyIntervalMS)
	if intervalErr != nil {
		loadErrs = append(loadErrs, intervalErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"SICA_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		FilterConfigURL:    getEnvOrKoanf("FILTER_CONFIG_URL", k, "filter_config_url"),
		MarkerMetadataURL:  getEnvOrKoanf("MARKER_METADATA_URL", k, "marker_metadata_url"),
		BuildingRecordsURL: getEnvOrKoanf("BUILDING_RECORDS_URL", k, "building_records_url"),
		BlocksGeoJSONURL:   getEnvOrKoanf("BLOCKS_GEOJSON_URL", k, "blocks_geojson_url"),
		BundleURL:          getEnvOrKoanf("BUNDLE_URL", k, "bundle_url"),
		MapTilerAPIKey:     getEnvOrKoanf("MAPTILER_API_KEY", k, "maptiler_api_key"),
		ReadyAttempts:      readyAttempts,
		ReadyIntervalMS:    readyInterval,
		AllowedOrigins:     getEnvOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	// The bundle carries filter config, metadata, and records in one blob;
	// per-resource sources are only required without it.
	if c.BundleURL == "" {
		if c.FilterConfigURL == "" {
			errs = append(errs, ErrMissingFilterConfigURL)
		}
		if c.MarkerMetadataURL == "" {
			errs = append(errs, ErrMissingMarkerMetadataURL)
		}
		if c.BuildingRecordsURL == "" {
			errs = append(errs, ErrMissingBuildingRecordsURL)
		}
	}
	if c.BlocksGeoJSONURL == "" {
		errs = append(errs, ErrMissingBlocksGeoJSONURL)
	}

	return errs
}

// Origins returns the allowed CORS origins as a slice, or nil when any
// origin is allowed.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LogSummary returns a summary of the configuration suitable for logging.
// Secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"filter_config_url":    c.FilterConfigURL,
		"marker_metadata_url":  c.MarkerMetadataURL,
		"building_records_url": c.BuildingRecordsURL,
		"blocks_geojson_url":   c.BlocksGeoJSONURL,
		"bundle_url":           c.BundleURL,
		"maptiler_api_key":     maskSecret(c.MapTilerAPIKey),
		"ready_attempts":       fmt.Sprintf("%d", c.ReadyAttempts),
		"ready_interval_ms":    fmt.Sprintf("%d", c.ReadyIntervalMS),
		"allowed_origins":      c.AllowedOrigins,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}
