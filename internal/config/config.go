package config

import (
	"path/filepath"
	"time"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Auth        AuthConfig        `yaml:"auth" json:"auth"`
	Scripts     ScriptsConfig     `yaml:"scripts" json:"scripts"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
}

type ServerConfig struct {
	Host            string          `yaml:"host" json:"host"`
	Port            int             `yaml:"port" json:"port"`
	PIDFile         string          `yaml:"pid_file" json:"pid_file"`
	ReadTimeoutSec  int             `yaml:"read_timeout_sec" json:"read_timeout_sec"`
	WriteTimeoutSec int             `yaml:"write_timeout_sec" json:"write_timeout_sec"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" json:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
}

// ScriptsConfig locates the external training and prediction scripts
// and controls how they are run.
type ScriptsConfig struct {
	// Dir is the base directory of both scripts. PYTHON_SCRIPT_PATH
	// overrides it when set.
	Dir string `yaml:"dir" json:"dir"`

	// Interpreter is the command the scripts are passed to, e.g. python.
	Interpreter string `yaml:"interpreter" json:"interpreter"`

	TrainScript   string `yaml:"train_script" json:"train_script"`
	PredictScript string `yaml:"predict_script" json:"predict_script"`

	// TimeoutSec bounds a single invocation. The child is killed on expiry.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`

	// MaxConcurrent is the number of child processes allowed at once.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// Selection picks the authoritative output line: last_line or first_marker.
	Selection string `yaml:"selection" json:"selection"`

	// ValidateOutput enables the marker check on the selected line.
	ValidateOutput bool `yaml:"validate_output" json:"validate_output"`

	// SampleIntervalMS is how often a running child's memory and CPU are
	// sampled. 0 disables sampling.
	SampleIntervalMS int `yaml:"sample_interval_ms" json:"sample_interval_ms"`

	// MinAvailableMemoryMB marks the server not ready while the host has
	// less memory available. 0 disables the check.
	MinAvailableMemoryMB int `yaml:"min_available_memory_mb" json:"min_available_memory_mb"`
}

type PersistenceConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	DataDir          string `yaml:"data_dir" json:"data_dir"`
	FlushIntervalSec int    `yaml:"flush_interval_sec" json:"flush_interval_sec"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Persistence.FlushIntervalSec) * time.Second
}

func (s *ScriptsConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func (s *ScriptsConfig) SampleInterval() time.Duration {
	return time.Duration(s.SampleIntervalMS) * time.Millisecond
}

func (s *ScriptsConfig) TrainPath() string {
	return filepath.Join(s.Dir, s.TrainScript)
}

func (s *ScriptsConfig) PredictPath() string {
	return filepath.Join(s.Dir, s.PredictScript)
}
