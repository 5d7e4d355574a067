package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error
	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateCacheConfig(&config.Cache)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	return errs
}

func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	validBackends := map[string]bool{"file": true, "pebble": true, "memory": true}
	if !validBackends[config.Backend] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "must be file, pebble, or memory",
		})
	}

	if config.DataDir == "" && config.Backend != "memory" {
		errs = append(errs, ValidationError{
			Field:   "storage.dataDir",
			Message: "data directory is required",
		})
	}

	validCompression := map[string]bool{"none": true, "snappy": true, "deflate": true}
	if config.Compression != "" && !validCompression[config.Compression] {
		errs = append(errs, ValidationError{
			Field:   "storage.compression",
			Message: "must be none, snappy, or deflate",
		})
	}

	if config.SplitSize != "" {
		n, err := ParseSize(config.SplitSize)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{Field: "storage.splitSize", Message: err.Error()})
		case n < 64:
			errs = append(errs, ValidationError{Field: "storage.splitSize", Message: "must be at least 64B"})
		}
	}

	return errs
}

func validateCacheConfig(config *CacheConfig) []error {
	var errs []error

	validPolicies := map[string]bool{"lru": true, "2q": true}
	if config.Policy != "" && !validPolicies[config.Policy] {
		errs = append(errs, ValidationError{
			Field:   "cache.policy",
			Message: "must be lru or 2q",
		})
	}

	if config.Size != "" {
		n, err := ParseSize(config.Size)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{Field: "cache.size", Message: err.Error()})
		case n == 0:
			errs = append(errs, ValidationError{Field: "cache.size", Message: "must be positive"})
		}
	}

	if config.ProtectedRatio < 0 || config.ProtectedRatio >= 1 {
		errs = append(errs, ValidationError{
			Field:   "cache.protectedRatio",
			Message: "must be in [0, 1)",
		})
	}

	return errs
}

func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}
