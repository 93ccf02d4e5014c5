// Package config provides configuration loading for tkldet.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jward/detective/internal/lint"
	"github.com/jward/detective/internal/locator"
	"github.com/jward/detective/internal/plan"
)

// Config represents the complete tkldet configuration
type Config struct {
	Modules ModulesConfig `yaml:"modules"`
	Lint    LintConfig    `yaml:"lint"`
	Store   StoreConfig   `yaml:"store"`
	Locator LocatorConfig `yaml:"locator"`
	// Workers is the number of items classified concurrently (0 or 1 = serial)
	Workers int `yaml:"workers"`
}

// ModulesConfig configures where classifier modules are loaded from
type ModulesConfig struct {
	// Dirs are tried in order; the first existing one is used
	Dirs []string `yaml:"dirs"`
}

// LintConfig configures the lint stage
type LintConfig struct {
	// MinLevel drops reports below this level (e.g. "warn")
	MinLevel string `yaml:"min_level"`
	// HideFixes leaves suggested fixes out of printed reports
	HideFixes bool `yaml:"hide_fixes"`
	// Disabled names linters which never run
	Disabled []string `yaml:"disabled,omitempty"`
}

// StoreConfig configures persistence of classification runs
type StoreConfig struct {
	// Path is the SQLite database file (empty = do not persist)
	Path string `yaml:"path"`
}

// LocatorConfig configures how appliances are found
type LocatorConfig struct {
	ProductsDir string `yaml:"products_dir"`
	// IncludePaths are searched for plans named by #include
	IncludePaths []string `yaml:"include_paths"`
	// IgnoreNonAppliance classifies any directory, not only appliances
	IgnoreNonAppliance bool `yaml:"ignore_non_appliance"`
}

// DefaultConfig returns a Config with build host defaults
func DefaultConfig() *Config {
	return &Config{
		Modules: ModulesConfig{
			Dirs: []string{"tkldet_modules", "/usr/share/tkldev-detective/tkldet_modules"},
		},
		Lint: LintConfig{
			MinLevel: "info",
		},
		Locator: LocatorConfig{
			ProductsDir:  locator.DefaultProductsDir,
			IncludePaths: []string{plan.DefaultIncludePath},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if len(c.Modules.Dirs) == 0 {
		errs = append(errs, errors.New("modules.dirs is required"))
	}
	if _, err := lint.ParseLevel(c.Lint.MinLevel); err != nil {
		errs = append(errs, fmt.Errorf("lint.min_level: %w", err))
	}
	if c.Locator.ProductsDir == "" {
		errs = append(errs, errors.New("locator.products_dir is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	return errors.Join(errs...)
}

// MinLevel returns the parsed lint.min_level.
func (c *Config) MinLevel() lint.Level {
	lvl, err := lint.ParseLevel(c.Lint.MinLevel)
	if err != nil {
		return lint.Info
	}
	return lvl
}

// LoadFromFile loads a configuration layer from a YAML file. Settings absent
// from the file are left zero, so the result is meant to be merged onto a
// base config with Merge.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Modules.Dirs) > 0 {
		c.Modules.Dirs = other.Modules.Dirs
	}

	if other.Lint.MinLevel != "" {
		c.Lint.MinLevel = other.Lint.MinLevel
	}
	if other.Lint.HideFixes {
		c.Lint.HideFixes = true
	}
	if len(other.Lint.Disabled) > 0 {
		c.Lint.Disabled = other.Lint.Disabled
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.Locator.ProductsDir != "" {
		c.Locator.ProductsDir = other.Locator.ProductsDir
	}
	if len(other.Locator.IncludePaths) > 0 {
		c.Locator.IncludePaths = other.Locator.IncludePaths
	}
	if other.Locator.IgnoreNonAppliance {
		c.Locator.IgnoreNonAppliance = true
	}

	if other.Workers != 0 {
		c.Workers = other.Workers
	}
}
