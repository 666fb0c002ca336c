// Package config provides the configuration structure for automuse.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Store backends.
const (
	BackendS3   = "s3"
	BackendNATS = "nats"
)

// Generator modes.
const (
	ModeHTTP       = "http"
	ModeSubprocess = "subprocess"
)

// Defaults.
const (
	DefaultBucket          = "automuse-output"
	DefaultRegion          = "ap-south-1"
	DefaultPrefix          = "generated_tracks/"
	DefaultExtension       = ".wav"
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultTrackBucket     = "AUTOMUSE_TRACKS"
	DefaultPromptBucket    = "AUTOMUSE_PROMPTS"
	DefaultServiceURL      = "http://127.0.0.1:8000"
	DefaultModel           = "facebook/musicgen-small"
	DefaultDurationSeconds = 20
	DefaultTimeoutSeconds  = 300
	DefaultOutputDir       = "outputs"
	DefaultMaxAttempts     = 1000
	DefaultIntervalSeconds = 3600
	DefaultLoopPrompt      = "an ambient futuristic synthwave tune"
	DefaultListenAddress   = ":5000"
	DefaultRequestPrompt   = "ai ambient space track"
	DefaultAllowedOrigin   = "*"
	DefaultLogsDir         = "logs"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// StoreConfig selects and locates the remote track namespace.
type StoreConfig struct {
	Backend   string `toml:"backend"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Prefix    string `toml:"prefix"`
	Extension string `toml:"extension"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                  string `toml:"url"`
	TrackBucket          string `toml:"track_bucket"`
	PromptBucket         string `toml:"prompt_bucket"`
	RequestSubject       string `toml:"request_subject"`
	HandleTimeoutSeconds int    `toml:"handle_timeout_seconds"`
}

// GeneratorConfig holds the configuration for the music model.
type GeneratorConfig struct {
	Mode            string `toml:"mode"`
	ServiceURL      string `toml:"service_url"`
	BinaryPath      string `toml:"binary_path"`
	Model           string `toml:"model"`
	DurationSeconds int    `toml:"duration_seconds"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// PublisherConfig holds the configuration for the publish pipeline.
type PublisherConfig struct {
	OutputDir        string `toml:"output_dir"`
	MaxAttempts      int    `toml:"max_attempts"`
	SerializePerBase bool   `toml:"serialize_per_base"`
	Normalize        *bool  `toml:"normalize"`
}

// SchedulerConfig holds the configuration for the publish loop.
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	IntervalSeconds int    `toml:"interval_seconds"`
	Prompt          string `toml:"prompt"`
}

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	ListenAddress  string `toml:"listen_address"`
	DefaultPrompt  string `toml:"default_prompt"`
	AllowedOrigin  string `toml:"allowed_origin"`
	// MaxPromptBytes caps POST /generate prompts; zero means no cap.
	MaxPromptBytes int    `toml:"max_prompt_bytes"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	NATS      NATSConfig      `toml:"nats"`
	Generator GeneratorConfig `toml:"generator"`
	Publisher PublisherConfig `toml:"publisher"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the project configuration through the configurator, then
// applies defaults and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file '%s': %w", path, err)
	}

	return cfg, nil
}

// Parse decodes TOML data, then applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	setString(&c.Store.Backend, BackendS3)
	setString(&c.Store.Bucket, DefaultBucket)
	setString(&c.Store.Region, DefaultRegion)
	setString(&c.Store.Prefix, DefaultPrefix)
	setString(&c.Store.Extension, DefaultExtension)

	setString(&c.NATS.URL, DefaultNATSURL)
	setString(&c.NATS.TrackBucket, DefaultTrackBucket)
	setString(&c.NATS.PromptBucket, DefaultPromptBucket)

	setString(&c.Generator.Mode, ModeHTTP)
	setString(&c.Generator.ServiceURL, DefaultServiceURL)
	setString(&c.Generator.Model, DefaultModel)
	setInt(&c.Generator.DurationSeconds, DefaultDurationSeconds)
	setInt(&c.Generator.TimeoutSeconds, DefaultTimeoutSeconds)

	setString(&c.Publisher.OutputDir, DefaultOutputDir)
	setInt(&c.Publisher.MaxAttempts, DefaultMaxAttempts)

	if c.Publisher.Normalize == nil {
		normalize := true
		c.Publisher.Normalize = &normalize
	}

	setInt(&c.Scheduler.IntervalSeconds, DefaultIntervalSeconds)
	setString(&c.Scheduler.Prompt, DefaultLoopPrompt)

	setString(&c.Server.ListenAddress, DefaultListenAddress)
	setString(&c.Server.DefaultPrompt, DefaultRequestPrompt)
	setString(&c.Server.AllowedOrigin, DefaultAllowedOrigin)

	setString(&c.Paths.BaseLogsDir, DefaultLogsDir)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Store.Backend != BackendS3 && c.Store.Backend != BackendNATS:
		return invalid("store.backend must be %q or %q, got %q", BackendS3, BackendNATS, c.Store.Backend)
	case c.Store.Backend == BackendS3 && strings.TrimSpace(c.Store.Bucket) == "":
		return invalid("store.bucket is required for the s3 backend")
	case c.Generator.Mode != ModeHTTP && c.Generator.Mode != ModeSubprocess:
		return invalid("generator.mode must be %q or %q, got %q", ModeHTTP, ModeSubprocess, c.Generator.Mode)
	case c.Generator.Mode == ModeSubprocess && c.Generator.BinaryPath == "":
		return invalid("generator.binary_path is required in subprocess mode")
	case c.Generator.DurationSeconds <= 0:
		return invalid("generator.duration_seconds must be positive, got %d", c.Generator.DurationSeconds)
	case c.Generator.TimeoutSeconds <= 0:
		return invalid("generator.timeout_seconds must be positive, got %d", c.Generator.TimeoutSeconds)
	case c.Publisher.MaxAttempts <= 0:
		return invalid("publisher.max_attempts must be positive, got %d", c.Publisher.MaxAttempts)
	case c.Scheduler.IntervalSeconds <= 0:
		return invalid("scheduler.interval_seconds must be positive, got %d", c.Scheduler.IntervalSeconds)
	case c.NATS.HandleTimeoutSeconds < 0:
		return invalid("nats.handle_timeout_seconds must not be negative, got %d", c.NATS.HandleTimeoutSeconds)
	case c.Server.MaxPromptBytes < 0:
		return invalid("server.max_prompt_bytes must not be negative, got %d", c.Server.MaxPromptBytes)
	}

	return nil
}

// NeedsNATS reports whether any configured component talks to NATS.
func (c *Config) NeedsNATS() bool {
	return c.Store.Backend == BackendNATS || c.NATS.RequestSubject != ""
}

// Interval returns the scheduler interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// GeneratorTimeout returns the per-request generator timeout.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// HandleTimeout returns the worker's per-request timeout, zero for the default.
func (c *Config) HandleTimeout() time.Duration {
	return time.Duration(c.NATS.HandleTimeoutSeconds) * time.Second
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func setString(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}
