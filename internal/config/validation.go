package config

import (
	"errors"
	"fmt"
)

const (
	SelectionLastLine    = "last_line"
	SelectionFirstMarker = "first_marker"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Scripts.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scripts: %w", err))
	}

	if err := c.Persistence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("persistence: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	// A response can only be written after the script finishes.
	if c.Server.WriteTimeoutSec >= 1 && c.Scripts.TimeoutSec >= 1 &&
		c.Server.WriteTimeoutSec <= c.Scripts.TimeoutSec {
		errs = append(errs, fmt.Errorf("server.write_timeout_sec (%d) must exceed scripts.timeout_sec (%d)",
			c.Server.WriteTimeoutSec, c.Scripts.TimeoutSec))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) Validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ReadTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("read_timeout_sec must be at least 1"))
	}
	if s.WriteTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("write_timeout_sec must be at least 1"))
	}
	if s.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be positive"))
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be positive"))
		}
		if s.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

func (s *ScriptsConfig) Validate() error {
	var errs []error

	if s.Dir == "" {
		errs = append(errs, fmt.Errorf("dir cannot be empty (set scripts.dir or %s)", ScriptPathEnv))
	}
	if s.Interpreter == "" {
		errs = append(errs, fmt.Errorf("interpreter cannot be empty"))
	}
	if s.TrainScript == "" {
		errs = append(errs, fmt.Errorf("train_script cannot be empty"))
	}
	if s.PredictScript == "" {
		errs = append(errs, fmt.Errorf("predict_script cannot be empty"))
	}
	if s.TimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("timeout_sec must be at least 1"))
	}
	if s.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be at least 1"))
	}
	if s.Selection != SelectionLastLine && s.Selection != SelectionFirstMarker {
		errs = append(errs, fmt.Errorf("invalid selection: %s (valid: %s, %s)", s.Selection, SelectionLastLine, SelectionFirstMarker))
	}
	if s.Selection == SelectionFirstMarker && !s.ValidateOutput {
		errs = append(errs, fmt.Errorf("selection %s requires validate_output", SelectionFirstMarker))
	}
	if s.SampleIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("sample_interval_ms must be non-negative"))
	}
	if s.MinAvailableMemoryMB < 0 {
		errs = append(errs, fmt.Errorf("min_available_memory_mb must be non-negative"))
	}

	return errors.Join(errs...)
}

func (p *PersistenceConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if p.FlushIntervalSec < 1 {
		return fmt.Errorf("flush_interval_sec must be at least 1")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && (m.Path == "" || m.Path[0] != '/') {
		return fmt.Errorf("path must start with /, got %q", m.Path)
	}
	return nil
}

func (a *AuthConfig) Validate() error {
	if a.Enabled {
		if a.User == "" {
			return fmt.Errorf("user cannot be empty when auth is enabled")
		}
		if a.Password == "" {
			return fmt.Errorf("password cannot be empty when auth is enabled")
		}
	}
	return nil
}
