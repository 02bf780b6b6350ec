package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level"`

	CounterIntervalMS int64 `json:"counter_interval_ms" yaml:"counter_interval_ms" toml:"counter_interval_ms"`
	CounterLimit      int   `json:"counter_limit" yaml:"counter_limit" toml:"counter_limit"`

	UploadEndpoint    string `json:"upload_endpoint" yaml:"upload_endpoint" toml:"upload_endpoint"`
	UploadMaxAttempts int    `json:"upload_max_attempts" yaml:"upload_max_attempts" toml:"upload_max_attempts"`
	UploadBackoffMS   int64  `json:"upload_backoff_ms" yaml:"upload_backoff_ms" toml:"upload_backoff_ms"`
	UploadTimeoutMS   int64  `json:"upload_timeout_ms" yaml:"upload_timeout_ms" toml:"upload_timeout_ms"`
	SpoolDir          string `json:"spool_dir" yaml:"spool_dir" toml:"spool_dir"`

	StateFile string `json:"state_file" yaml:"state_file" toml:"state_file"`

	MaxBodyBytes      int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	EventHeartbeatMS  int64 `json:"event_heartbeat_ms" yaml:"event_heartbeat_ms" toml:"event_heartbeat_ms"`
	ShutdownTimeoutMS int64 `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms"`

	CORS CORS `json:"cors" yaml:"cors" toml:"cors"`
}

// CORS configures cross-origin access to the HTTP API.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Defaults used by ApplyDefaults.
const (
	DefaultAddr              = ":8080"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	DefaultCounterIntervalMS = 1000
	DefaultUploadMaxAttempts = 3
	DefaultUploadBackoffMS   = 500
	DefaultMaxBodyBytes      = 1 << 20
	DefaultEventHeartbeatMS  = 15000
	DefaultShutdownTimeoutMS = 5000
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.HTTPLogLevel == "" {
		c.HTTPLogLevel = c.LogLevel
	}
	if c.CounterIntervalMS == 0 {
		c.CounterIntervalMS = DefaultCounterIntervalMS
	}
	if c.UploadMaxAttempts == 0 {
		c.UploadMaxAttempts = DefaultUploadMaxAttempts
	}
	if c.UploadBackoffMS == 0 {
		c.UploadBackoffMS = DefaultUploadBackoffMS
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.EventHeartbeatMS == 0 {
		c.EventHeartbeatMS = DefaultEventHeartbeatMS
	}
	if c.ShutdownTimeoutMS == 0 {
		c.ShutdownTimeoutMS = DefaultShutdownTimeoutMS
	}
	if c.CORS.Enabled {
		if len(c.CORS.Origins) == 0 {
			c.CORS.Origins = []string{"*"}
		}
		if len(c.CORS.Methods) == 0 {
			c.CORS.Methods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		}
		if len(c.CORS.Headers) == 0 {
			c.CORS.Headers = []string{"Content-Type", "X-Request-Id"}
		}
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q (want console or json)", c.LogFormat)
	}
	for name, v := range map[string]int64{
		"counter_interval_ms": c.CounterIntervalMS,
		"counter_limit":       int64(c.CounterLimit),
		"upload_max_attempts": int64(c.UploadMaxAttempts),
		"upload_backoff_ms":   c.UploadBackoffMS,
		"upload_timeout_ms":   c.UploadTimeoutMS,
		"max_body_bytes":      c.MaxBodyBytes,
		"event_heartbeat_ms":  c.EventHeartbeatMS,
		"shutdown_timeout_ms": c.ShutdownTimeoutMS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.SpoolDir != "" && c.UploadEndpoint == "" {
		return fmt.Errorf("spool_dir requires upload_endpoint")
	}
	return nil
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// CounterInterval is the default counter tick interval.
func (c Config) CounterInterval() time.Duration { return ms(c.CounterIntervalMS) }

// UploadBackoff is the delay before the first upload retry.
func (c Config) UploadBackoff() time.Duration { return ms(c.UploadBackoffMS) }

// UploadTimeout bounds one upload attempt; zero means no timeout.
func (c Config) UploadTimeout() time.Duration { return ms(c.UploadTimeoutMS) }

// EventHeartbeat is the keep-alive interval of /events.
func (c Config) EventHeartbeat() time.Duration { return ms(c.EventHeartbeatMS) }

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }
