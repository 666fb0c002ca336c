// Package config_test tests the configuration loading for automuse.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/automuse/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[store]
backend = "nats"
bucket = "my-tracks"
region = "eu-west-1"
endpoint = "http://127.0.0.1:9000"
prefix = "music"
extension = ".wav"

[nats]
url = "nats://10.0.0.5:4222"
track_bucket = "TRACKS"
prompt_bucket = "PROMPTS"
request_subject = "automuse.generate"
handle_timeout_seconds = 120

[generator]
mode = "subprocess"
service_url = "http://gpu:8000"
binary_path = "/opt/musicgen/generate"
model = "facebook/musicgen-medium"
duration_seconds = 10
timeout_seconds = 600

[publisher]
output_dir = "/var/lib/automuse"
max_attempts = 50
serialize_per_base = true
normalize = false

[scheduler]
enabled = true
interval_seconds = 900
prompt = "lofi rain"

[server]
listen_address = ":8080"
default_prompt = "calm piano"
allowed_origin = "https://automuse.example"
max_prompt_bytes = 2000

[paths]
base_logs_dir = "/var/log/automuse"
`

func TestParse_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, config.BackendNATS, cfg.Store.Backend)
	assert.Equal(t, "my-tracks", cfg.Store.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Store.Region)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Store.Endpoint)
	assert.Equal(t, "music", cfg.Store.Prefix)
	assert.Equal(t, "nats://10.0.0.5:4222", cfg.NATS.URL)
	assert.Equal(t, "TRACKS", cfg.NATS.TrackBucket)
	assert.Equal(t, "PROMPTS", cfg.NATS.PromptBucket)
	assert.Equal(t, "automuse.generate", cfg.NATS.RequestSubject)
	assert.Equal(t, 2*time.Minute, cfg.HandleTimeout())
	assert.Equal(t, config.ModeSubprocess, cfg.Generator.Mode)
	assert.Equal(t, "/opt/musicgen/generate", cfg.Generator.BinaryPath)
	assert.Equal(t, "facebook/musicgen-medium", cfg.Generator.Model)
	assert.Equal(t, 10, cfg.Generator.DurationSeconds)
	assert.Equal(t, 10*time.Minute, cfg.GeneratorTimeout())
	assert.Equal(t, "/var/lib/automuse", cfg.Publisher.OutputDir)
	assert.Equal(t, 50, cfg.Publisher.MaxAttempts)
	assert.True(t, cfg.Publisher.SerializePerBase)
	require.NotNil(t, cfg.Publisher.Normalize)
	assert.False(t, *cfg.Publisher.Normalize)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Interval())
	assert.Equal(t, "lofi rain", cfg.Scheduler.Prompt)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, "calm piano", cfg.Server.DefaultPrompt)
	assert.Equal(t, "https://automuse.example", cfg.Server.AllowedOrigin)
	assert.Equal(t, 2000, cfg.Server.MaxPromptBytes)
	assert.Equal(t, "/var/log/automuse", cfg.Paths.BaseLogsDir)
	assert.True(t, cfg.NeedsNATS())
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, config.BackendS3, cfg.Store.Backend)
	assert.Equal(t, "automuse-output", cfg.Store.Bucket)
	assert.Equal(t, "ap-south-1", cfg.Store.Region)
	assert.Equal(t, "generated_tracks/", cfg.Store.Prefix)
	assert.Equal(t, ".wav", cfg.Store.Extension)
	assert.Equal(t, config.ModeHTTP, cfg.Generator.Mode)
	assert.Equal(t, "facebook/musicgen-small", cfg.Generator.Model)
	assert.Equal(t, 20, cfg.Generator.DurationSeconds)
	assert.Equal(t, "outputs", cfg.Publisher.OutputDir)
	assert.Equal(t, 1000, cfg.Publisher.MaxAttempts)
	assert.False(t, cfg.Publisher.SerializePerBase)
	require.NotNil(t, cfg.Publisher.Normalize)
	assert.True(t, *cfg.Publisher.Normalize)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Interval())
	assert.Equal(t, "an ambient futuristic synthwave tune", cfg.Scheduler.Prompt)
	assert.Equal(t, ":5000", cfg.Server.ListenAddress)
	assert.Equal(t, "ai ambient space track", cfg.Server.DefaultPrompt)
	assert.Equal(t, "*", cfg.Server.AllowedOrigin)
	assert.Zero(t, cfg.Server.MaxPromptBytes)
	assert.Equal(t, time.Duration(0), cfg.HandleTimeout())
	assert.False(t, cfg.NeedsNATS())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown backend":            "[store]\nbackend = \"gcs\"",
		"unknown mode":               "[generator]\nmode = \"grpc\"",
		"subprocess without path":    "[generator]\nmode = \"subprocess\"",
		"negative duration":          "[generator]\nduration_seconds = -5",
		"negative interval":          "[scheduler]\ninterval_seconds = -1",
		"negative max attempts":      "[publisher]\nmax_attempts = -1",
		"negative handle timeout":    "[nats]\nhandle_timeout_seconds = -1",
		"negative generator timeout": "[generator]\ntimeout_seconds = -1",
		"negative prompt cap":        "[server]\nmax_prompt_bytes = -1",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(data))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte("[store\nbackend = "))
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "automuse.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "my-tracks", cfg.Store.Bucket)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_RoundTripsThroughTOML(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(fullConfig))
	require.NoError(t, err)

	data, err := toml.Marshal(cfg)
	require.NoError(t, err)

	again, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
