// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	OutputDir string        `yaml:"output_dir"` // studies directory
	ExportDir string        `yaml:"export_dir"` // destination for export trees
	Seed      uint64        `yaml:"seed"`       // 0 seeds from system entropy
	Workers   int           `yaml:"workers"`    // parallel pixel workers, 0 = CPU count
	Logging   LoggingConfig `yaml:"logging"`
	PACS      PACSConfig    `yaml:"pacs"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// PACSConfig configures the DICOMweb archive connection.
type PACSConfig struct {
	URL       string        `yaml:"url"`        // base URL, e.g. http://pacs:8042/dicom-web
	CallingAE string        `yaml:"calling_ae"` // our AE title, truncated to 16 chars
	CalledAE  string        `yaml:"called_ae"`  // archive AE title
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		OutputDir: "studies",
		ExportDir: "exports",
		Logging:   LoggingConfig{Level: "info"},
		PACS: PACSConfig{
			CallingAE: "DICOMSYNTH",
			Timeout:   30 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file. Environment variables in
// the file are expanded before parsing, and absent keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if cfg.ExportDir == "" {
		return fmt.Errorf("export_dir must not be empty")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.PACS.Timeout < 0 {
		return fmt.Errorf("pacs.timeout must be >= 0, got %s", cfg.PACS.Timeout)
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	return nil
}
