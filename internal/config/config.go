package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Workers int           `yaml:"workers"`
	Log     LogConfig     `yaml:"log"`
	SNBT    SNBTConfig    `yaml:"snbt"`
	Region  RegionConfig  `yaml:"region"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SNBTConfig struct {
	// Indent is the per-level indentation of written SNBT. Empty writes
	// compact single-line SNBT.
	Indent string `yaml:"indent"`
}

type RegionConfig struct {
	DefaultCompression string `yaml:"default_compression"`
	// ChunkModeThreshold is the number of present chunks above which a
	// region is converted into a chunk folder instead of one SNBT file.
	ChunkModeThreshold int `yaml:"chunk_mode_threshold"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

const (
	EnvConfig   = "ANVIL2SNBT_CONFIG"
	EnvWorkers  = "ANVIL2SNBT_WORKERS"
	EnvLogLevel = "ANVIL2SNBT_LOG_LEVEL"
)

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		SNBT:   SNBTConfig{Indent: "  "},
		Region: RegionConfig{DefaultCompression: "zlib", ChunkModeThreshold: 64},
	}
}

// Load reads the YAML file at path on top of the defaults. When path is
// empty the ANVIL2SNBT_CONFIG variable is consulted; without either only
// the defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Region.ChunkModeThreshold < 0 {
		return fmt.Errorf("region.chunk_mode_threshold must not be negative, got %d", c.Region.ChunkModeThreshold)
	}
	return nil
}
