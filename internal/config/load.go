package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file.
// Defaults are applied before validation.
func LoadConfig(filename string) (*BatchConfig, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var config BatchConfig
	if err := yaml.Unmarshal(fileBytes, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills in defaults for unset configuration fields and
// normalizes enum-valued fields so later comparisons are case-stable.
func applyDefaults(cfg *BatchConfig) {
	cfg.Operation.Type = strings.ToLower(cfg.Operation.Type)
	cfg.Input.Type = strings.ToLower(cfg.Input.Type)
	if cfg.Roster != nil {
		cfg.Roster.Type = strings.ToLower(cfg.Roster.Type)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Input.Type == "" {
		cfg.Input.Type = SourceTypeCSV
	}
	if cfg.Input.Type == SourceTypeCSV && cfg.Input.Delimiter == "" {
		cfg.Input.Delimiter = DefaultCSVDelimiter
	}
	if cfg.Roster != nil {
		if cfg.Roster.Type == SourceTypeCSV && cfg.Roster.Delimiter == "" {
			cfg.Roster.Delimiter = DefaultCSVDelimiter
		}
		if cfg.Roster.Type != SourceTypePostgres && cfg.Roster.Column == "" {
			cfg.Roster.Column = "LOGIN_ID"
		}
	}
}
