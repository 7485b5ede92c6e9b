// Package config loads castkeep's YAML configuration: detector
// threshold overrides, storage location, watch directory, and the
// processing fan-out limit.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// StoragePath is the sqlite database file for the section store.
	StoragePath string `yaml:"storage_path"`
	// WatchDir, if set, is observed by internal/watch for new .cast files.
	WatchDir string `yaml:"watch_dir"`
	// FanOut bounds how many sessions process concurrently.
	FanOut int `yaml:"fan_out"`
	// Detector overrides spec.md §4.3's defaults, mainly for tests/tuning.
	Detector DetectorConfig `yaml:"detector"`
}

type DetectorConfig struct {
	MergeWindow    *int `yaml:"merge_window,omitempty"`
	MinSectionSize *int `yaml:"min_section_size,omitempty"`
	MaxSections    *int `yaml:"max_sections,omitempty"`
}

// ConfigDir returns castkeep's configuration directory (~/.castkeep/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".castkeep")
	}
	return filepath.Join(home, ".castkeep")
}

// Load reads castkeep's config from ~/.castkeep/config.yaml. If the
// file does not exist, it returns the default Config (fan_out 1,
// storage under ConfigDir) and no error.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads castkeep's config from the given path. If the file
// does not exist, it returns the default Config and no error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		StoragePath: filepath.Join(ConfigDir(), "castkeep.db"),
		FanOut:      1,
	}
}

func (c *Config) validate() error {
	if c.FanOut < 1 {
		return fmt.Errorf("fan_out: must be >= 1, got %d", c.FanOut)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storage_path: must not be empty")
	}
	if v := c.Detector.MergeWindow; v != nil && *v < 0 {
		return fmt.Errorf("detector.merge_window: must be >= 0, got %d", *v)
	}
	if v := c.Detector.MinSectionSize; v != nil && *v < 0 {
		return fmt.Errorf("detector.min_section_size: must be >= 0, got %d", *v)
	}
	if v := c.Detector.MaxSections; v != nil && *v < 1 {
		return fmt.Errorf("detector.max_sections: must be >= 1, got %d", *v)
	}
	return nil
}
