// Package config provides configuration loading and management for segvalidate.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// VoxelThreshold is a voxel count read from YAML. Only integer scalars are
// accepted; yaml.v3 would otherwise truncate a float into an int silently.
type VoxelThreshold int

// UnmarshalYAML rejects any node that does not resolve to an integer.
func (t *VoxelThreshold) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!int" {
		return fmt.Errorf("line %d: tinyObjectsRemovalThreshold must be an integer, got %q",
			value.Line, value.Value)
	}
	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("line %d: tinyObjectsRemovalThreshold: %w", value.Line, err)
	}
	*t = VoxelThreshold(n)
	return nil
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Validation parameters
	Validation struct {
		// TinyObjectsRemovalThreshold is the minimum voxel count an instance
		// needs to be kept, in both ground truth and detection
		TinyObjectsRemovalThreshold VoxelThreshold `yaml:"tinyObjectsRemovalThreshold"`
	} `yaml:"validation"`

	// Trace parameters
	Trace struct {
		// Enabled dumps label volumes and match tables for debugging
		Enabled bool `yaml:"enabled"`

		// OutputDir is the root directory of the trace files
		OutputDir string `yaml:"outputDir"`
	} `yaml:"trace"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Log parameters
	Log struct {
		// File is the path of a rotating log file; empty logs to stderr
		File string `yaml:"file"`

		// MaxSize is the size in megabytes before the log file is rotated
		MaxSize int `yaml:"maxSize"`

		// MaxAge is the number of days rotated log files are kept
		MaxAge int `yaml:"maxAge"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Validation.TinyObjectsRemovalThreshold = 50

	cfg.Trace.Enabled = false
	cfg.Trace.OutputDir = "validation_trace"

	cfg.Output.Verbose = false

	cfg.Log.MaxSize = 100
	cfg.Log.MaxAge = 30

	return cfg
}

// Validate checks the configuration for values the validation cannot run with
func (c *Config) Validate() error {
	if c.Validation.TinyObjectsRemovalThreshold < 0 {
		return fmt.Errorf("invalid tinyObjectsRemovalThreshold %d: must be non-negative",
			c.Validation.TinyObjectsRemovalThreshold)
	}
	if c.Trace.Enabled && c.Trace.OutputDir == "" {
		return fmt.Errorf("trace enabled without an output directory")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error in config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
