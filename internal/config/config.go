// Package config loads brr's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWPM             = 300
	MinWPM                 = 50
	MaxWPM                 = 2000
	DefaultLoadConcurrency = 4
)

// Config holds all configuration
type Config struct {
	WPM   int         `yaml:"wpm"`
	Store StoreConfig `yaml:"store"`
	EPUB  EPUBConfig  `yaml:"epub"`
	Log   LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // bolt or sqlite
	Path    string `yaml:"path"`
}

type EPUBConfig struct {
	LoadConcurrency int `yaml:"load_concurrency"` // parallel spine document loads
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
	File   string `yaml:"file"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns XDG_CONFIG_HOME/brr/config.yaml or
// ~/.config/brr/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "brr", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "brr", "config.yaml")
}

// Load reads path, or DefaultPath when path is empty. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := LoadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects values the reader cannot run with.
func (c *Config) Validate() error {
	if c.WPM < MinWPM || c.WPM > MaxWPM {
		return fmt.Errorf("wpm must be between %d and %d, got %d", MinWPM, MaxWPM, c.WPM)
	}
	switch c.Store.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (use bolt or sqlite)", c.Store.Backend)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q (use json or console)", c.Log.Format)
	}
	if c.EPUB.LoadConcurrency < 1 {
		return fmt.Errorf("epub.load_concurrency must be at least 1, got %d", c.EPUB.LoadConcurrency)
	}
	return nil
}

// StateDir returns XDG_STATE_HOME/brr or ~/.local/state/brr
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "brr")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "brr")
}

// applyDefaults sets default values for unset fields
func (c *Config) applyDefaults() {
	if c.WPM == 0 {
		c.WPM = DefaultWPM
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "bolt"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(StateDir(), "library."+c.Store.Backend)
	}
	if c.EPUB.LoadConcurrency == 0 {
		c.EPUB.LoadConcurrency = DefaultLoadConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(StateDir(), "brr.log")
	}
}
