package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/logging"
)

const sampleConfig = `
default_model = "fast"

[server]
addr = ":9090"

[log]
level = "debug"
format = "json"

[meeting]
default_max_rounds = 4
human_wait_timeout = "2m"
retention = "30m"

[agent]
max_retries = 1
retry_base_delay = "500ms"
turn_timeout = "45s"

[summary]
model = "smart"

[archive]
backend = "redis"
redis_url = "redis://localhost:6379/0"
ttl = "24h"

[[models]]
name = "fast"
provider = "mock"

[[models]]
name = "smart"
provider = "openai"
model = "gpt-4o-mini"
api_key = "${MEETMESH_TEST_KEY}"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnvFile(o *LoadOptions) {
	o.EnvFile = ""
	o.SearchPaths = []string{}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("MEETMESH_TEST_KEY", "sk-test")
	path := writeFile(t, "meetmesh.toml", sampleConfig)

	cfg, err := Load(path, noEnvFile)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 4, cfg.Meeting.DefaultMaxRounds)
	assert.Equal(t, 2*time.Minute, cfg.Meeting.HumanWaitTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Meeting.Retention)
	assert.Equal(t, time.Minute, cfg.Meeting.SweepInterval)
	assert.Equal(t, 1, cfg.Agent.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.RetryBaseDelay)
	assert.Equal(t, 45*time.Second, cfg.Agent.TurnTimeout)
	assert.Equal(t, "smart", cfg.Summary.Model)
	assert.Equal(t, ArchiveRedis, cfg.Archive.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Archive.TTL)
	assert.Equal(t, "fast", cfg.DefaultModel)

	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "mock", cfg.Models[0].Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Models[1].Model)
	assert.Equal(t, "sk-test", cfg.Models[1].APIKey)

	logCfg := cfg.LoggingConfig()
	assert.Equal(t, logging.LogLevelDebug, logCfg.Level)
	assert.Equal(t, logging.FormatJSON, logCfg.Format)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("", noEnvFile)
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, logging.FormatTint, cfg.Log.Format)
	assert.Equal(t, ArchiveMemory, cfg.Archive.Backend)
	assert.Equal(t, time.Hour, cfg.Meeting.Retention)
	assert.Equal(t, 100, cfg.Meeting.EventBufferSize)
	assert.Empty(t, cfg.Models)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 2, policy.MaxRetries)
	assert.Equal(t, 2*time.Second, policy.BaseDelay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEETMESH_SERVER_ADDR", ":7000")
	t.Setenv("MEETMESH_AGENT_TURN_TIMEOUT", "5s")
	t.Setenv("MEETMESH_MEETING_DEFAULT_MAX_ROUNDS", "7")

	cfg, err := Load("", noEnvFile)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Agent.TurnTimeout)
	assert.Equal(t, 7, cfg.Meeting.DefaultMaxRounds)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "MEETMESH_LOG_LEVEL=warn\n")
	t.Cleanup(func() { _ = os.Unsetenv("MEETMESH_LOG_LEVEL") })

	cfg, err := Load("", func(o *LoadOptions) {
		o.EnvFile = envFile
		o.SearchPaths = []string{}
	})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_SearchPaths(t *testing.T) {
	path := writeFile(t, "config.toml", "[server]\naddr = \":6000\"\n")

	cfg, err := Load("", func(o *LoadOptions) {
		o.EnvFile = ""
		o.SearchPaths = []string{filepath.Join(t.TempDir(), "missing.toml"), path}
	})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, ":6000", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "[log]\nformat = \"xml\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad backend", "[archive]\nbackend = \"s3\"\n"},
		{"redis without url", "[archive]\nbackend = \"redis\"\n"},
		{"negative rounds", "[meeting]\ndefault_max_rounds = -1\n"},
		{"unnamed model", "[[models]]\nprovider = \"mock\"\n"},
		{"duplicate model", "[[models]]\nname = \"a\"\nprovider = \"mock\"\n[[models]]\nname = \"a\"\nprovider = \"mock\"\n"},
		{"malformed toml", "[server\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "meetmesh.toml", tt.content), noEnvFile)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), noEnvFile)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}
