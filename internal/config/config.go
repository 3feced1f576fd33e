// Package config provides configuration loading and structs for folio.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Site    SiteConfig    `yaml:"site"`
	Paths   PathsConfig   `yaml:"paths"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
	Import  ImportConfig  `yaml:"import"`
	Home    HomeConfig    `yaml:"home"`
}

// SiteConfig describes the published site; BaseURL prefixes every RSS link and guid.
type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
}

// PathsConfig holds the content and output roots.
type PathsConfig struct {
	ContentDir string `yaml:"content_dir"`
	OutputDir  string `yaml:"output_dir"`
	// Preserve lists output-relative paths the orphan sweep must never delete.
	Preserve []string `yaml:"preserve"`
}

// ServerConfig holds local HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the build ledger location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds rebuild-on-change settings for serve -watch.
type WatchConfig struct {
	DebounceMS int      `yaml:"debounce_ms"`
	Extensions []string `yaml:"extensions"`
}

// ImportConfig holds photo import defaults.
type ImportConfig struct {
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
	Quality   int    `yaml:"quality"`
	Converter string `yaml:"converter"`
}

// HomeConfig controls the generated homepage sections.
type HomeConfig struct {
	RecentPosts     int `yaml:"recent_posts"`
	RecentGalleries int `yaml:"recent_galleries"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Paths.ContentDir = expandPath(cfg.Paths.ContentDir, configDir)
	cfg.Paths.OutputDir = expandPath(cfg.Paths.OutputDir, configDir)
	if cfg.Storage.DatabasePath != "" {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load, except that a missing file yields the defaults
// with paths resolved against the directory path would have lived in.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	configDir := filepath.Dir(path)
	cfg.Paths.ContentDir = expandPath(cfg.Paths.ContentDir, configDir)
	cfg.Paths.OutputDir = expandPath(cfg.Paths.OutputDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Relative paths (with or without "./")
// are relative to configDir; "~/" paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	abs, err := filepath.Abs(filepath.Join(configDir, path))
	if err != nil {
		return filepath.Join(configDir, path)
	}
	return abs
}
