package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = substituteEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Resolve builds the process-wide configuration once at startup.
// Without a file it starts from defaults plus environment. A missing
// scripts directory is a validation error, so startup aborts.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	cfg := Default()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault never fails. It is used where a best-effort view is
// enough, such as printing the configuration.
func LoadOrDefault(path string) *Config {
	if path == "" {
		cfg := Default()
		cfg.applyEnv()
		return cfg
	}

	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}

	return cfg
}
