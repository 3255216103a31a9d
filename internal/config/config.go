// Package config loads resolver settings from an optional YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/altglass/imgcache/internal/geometry"
)

// Config holds the resolver settings.
type Config struct {
	// PublicRoot is the directory public paths are expressed relative
	// to. Empty means public paths equal filesystem paths.
	PublicRoot string `yaml:"public_root"`

	// Placeholder is the image substituted when a source cannot be
	// transformed.
	Placeholder string `yaml:"placeholder"`

	// Quality is the default encoding quality, 1-100.
	Quality int `yaml:"quality"`

	// Mode is the default resize mode for the CLI.
	Mode string `yaml:"mode"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Quality: 90,
		Mode:    string(geometry.ModeFit),
	}
}

// Load reads and parses the configuration file at path, filling unset
// fields from Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("quality %d out of range 0-100", c.Quality)
	}
	if c.Mode != "" {
		if _, err := geometry.ParseMode(c.Mode); err != nil {
			return err
		}
	}
	return nil
}
