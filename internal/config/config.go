package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file at the root of a ledger directory.
const FileName = "doubletake.yaml"

// Config represents the top-level doubletake.yaml configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Detection DetectionConfig `yaml:"detection"`
	Git       GitConfig       `yaml:"git"`
}

// StoreConfig selects where the ledger lives. An empty database string means
// the CSV files next to the config file.
type StoreConfig struct {
	Database string `yaml:"database,omitempty"` // postgres connection string
}

// DetectionConfig holds the default tolerances used when the detect command
// is run without flags.
type DetectionConfig struct {
	DateToleranceDays  int     `yaml:"date_tolerance_days"`
	AmountTolerance    float64 `yaml:"amount_tolerance"`
	AmountTolerancePct float64 `yaml:"amount_tolerance_pct"`
	MinScore           float64 `yaml:"min_score"`
}

// GitConfig controls git integration for CSV-backed ledgers.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a doubletake.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger: exact
// matching with the standard 0.8 score floor, git auto-commit on.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			MinScore: 0.8,
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Doubletake",
			AuthorEmail: "bot@doubletake.dev",
		},
	}
}
