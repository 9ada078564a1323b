// Package config loads meetmesh settings from a TOML file, the environment
// and an optional .env file.
//
// Lookup order for the file is the explicit path, ./meetmesh.toml and
// $HOME/.meetmesh/config.toml. A missing file is not an error; defaults and
// environment variables still apply. Environment variables use the MEETMESH_
// prefix with dots replaced by underscores, e.g. MEETMESH_SERVER_ADDR.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hupe1980/meetmesh/agent"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/model/factory"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "MEETMESH"

// Archive backends.
const (
	ArchiveMemory = "memory"
	ArchiveRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Log     LogConfig      `mapstructure:"log"`
	Meeting MeetingConfig  `mapstructure:"meeting"`
	Agent   AgentConfig    `mapstructure:"agent"`
	Summary SummaryConfig  `mapstructure:"summary"`
	Archive ArchiveConfig  `mapstructure:"archive"`
	Models  []factory.Spec `mapstructure:"models"`
	// DefaultModel names the model used by participants without one; empty
	// selects the first entry of Models.
	DefaultModel string `mapstructure:"default_model"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

type MeetingConfig struct {
	DefaultMaxRounds int           `mapstructure:"default_max_rounds"`
	HumanWaitTimeout time.Duration `mapstructure:"human_wait_timeout"`
	Retention        time.Duration `mapstructure:"retention"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	EventBufferSize  int           `mapstructure:"event_buffer_size"`
}

type AgentConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
	// MaxHistoryEntries limits how many previous turns are quoted; zero keeps
	// the agent default.
	MaxHistoryEntries int `mapstructure:"max_history_entries"`
}

type SummaryConfig struct {
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ArchiveConfig struct {
	Backend   string        `mapstructure:"backend"`
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// EnvFile is loaded with godotenv before the environment is read. A
	// missing file is ignored. Empty disables it.
	EnvFile string
	// SearchPaths replaces the default lookup when no explicit path is given.
	SearchPaths []string
}

// SetDefaults registers every key with its default so environment overrides
// work for keys absent from the file.
func SetDefaults(v *viper.Viper) {
	retry := agent.DefaultRetryPolicy()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatTint)
	v.SetDefault("log.no_color", false)
	v.SetDefault("meeting.default_max_rounds", 0)
	v.SetDefault("meeting.human_wait_timeout", agent.DefaultHumanInputTimeout)
	v.SetDefault("meeting.retention", time.Hour)
	v.SetDefault("meeting.sweep_interval", time.Minute)
	v.SetDefault("meeting.event_buffer_size", 100)
	v.SetDefault("agent.max_retries", retry.MaxRetries)
	v.SetDefault("agent.retry_base_delay", retry.BaseDelay)
	v.SetDefault("agent.retry_max_delay", retry.MaxDelay)
	v.SetDefault("agent.turn_timeout", 0)
	v.SetDefault("agent.max_history_entries", 0)
	v.SetDefault("summary.model", "")
	v.SetDefault("summary.timeout", 2*time.Minute)
	v.SetDefault("archive.backend", ArchiveMemory)
	v.SetDefault("archive.redis_url", "")
	v.SetDefault("archive.key_prefix", "meetmesh:")
	v.SetDefault("archive.ttl", 0)
	v.SetDefault("default_model", "")
}

// Load reads the configuration. path may be empty.
func Load(path string, optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{EnvFile: ".env"}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: load %s: %v", core.ErrConfiguration, opts.EnvFile, err)
		}
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	file := path
	if file == "" {
		file = firstExisting(searchPaths(opts.SearchPaths))
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if path != "" || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: read %s: %v", core.ErrConfiguration, file, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrConfiguration, err)
	}
	cfg.File = v.ConfigFileUsed()

	for i := range cfg.Models {
		cfg.Models[i].APIKey = os.ExpandEnv(cfg.Models[i].APIKey)
		cfg.Models[i].BaseURL = os.ExpandEnv(cfg.Models[i].BaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func searchPaths(custom []string) []string {
	if custom != nil {
		return custom
	}
	paths := []string{"meetmesh.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".meetmesh", "config.toml"))
	}
	return paths
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", core.ErrConfiguration, err)
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatText, logging.FormatTint:
	default:
		return fmt.Errorf("%w: log.format %q (want json, text or tint)", core.ErrConfiguration, c.Log.Format)
	}
	switch c.Archive.Backend {
	case ArchiveMemory:
	case ArchiveRedis:
		if c.Archive.RedisURL == "" {
			return fmt.Errorf("%w: archive.redis_url is required for the redis backend", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: archive.backend %q (want memory or redis)", core.ErrConfiguration, c.Archive.Backend)
	}
	if c.Meeting.DefaultMaxRounds < 0 {
		return fmt.Errorf("%w: meeting.default_max_rounds must not be negative", core.ErrConfiguration)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("%w: agent.max_retries must not be negative", core.ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: model entry without name", core.ErrConfiguration)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("%w: duplicate model %q", core.ErrConfiguration, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() *logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Log.Format
	cfg.NoColor = c.Log.NoColor
	return cfg
}

// RetryPolicy converts the retry keys of the agent section.
func (c *Config) RetryPolicy() agent.RetryPolicy {
	return agent.RetryPolicy{
		MaxRetries: c.Agent.MaxRetries,
		BaseDelay:  c.Agent.RetryBaseDelay,
		MaxDelay:   c.Agent.RetryMaxDelay,
	}
}

// AgentOptions returns the option function applied to model participants.
func (c *Config) AgentOptions() func(o *agent.ModelAgentOptions) {
	return func(o *agent.ModelAgentOptions) {
		o.Retry = c.RetryPolicy()
		o.TurnTimeout = c.Agent.TurnTimeout
		if c.Agent.MaxHistoryEntries > 0 {
			o.MaxHistoryEntries = c.Agent.MaxHistoryEntries
		}
	}
}
