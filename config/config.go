// Package config loads harnesstest settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable read by Load.
const Prefix = "HARNESSTEST"

// DefaultBuildOutputSuffix marks a caller location as living inside a
// project-local test build tree.
const DefaultBuildOutputSuffix = "/build/test/"

// Config holds all harnesstest configuration.
type Config struct {
	// TempDir is the default parent for sandboxes. Empty means os.TempDir().
	TempDir string `envconfig:"TEMP_DIR"`
	// BuildOutputSuffix is matched against caller locations.
	BuildOutputSuffix string `envconfig:"BUILD_OUTPUT_SUFFIX" default:"/build/test/"`
	// UserPluginDir is scanned by non-isolated environments. Empty means
	// $HOME/.harness/plugins.
	UserPluginDir string `envconfig:"USER_PLUGIN_DIR"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"warn"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		BuildOutputSuffix: DefaultBuildOutputSuffix,
		LogLevel:          "warn",
	}
}

// ResolvedTempDir returns TempDir, falling back to the platform temp dir.
func (c *Config) ResolvedTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}

// ResolvedUserPluginDir returns UserPluginDir, falling back to
// $HOME/.harness/plugins. It returns "" when no home directory is known.
func (c *Config) ResolvedUserPluginDir() string {
	if c.UserPluginDir != "" {
		return c.UserPluginDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".harness", "plugins")
}
