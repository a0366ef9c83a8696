package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/audit"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	Port     string `yaml:"port"`
	// Store is "postgres" or "memory". The memory store publishes events straight to the
	// in-process gateway instead of the outbox.
	Store string `yaml:"store"`

	Arbiter struct {
		Enabled  bool   `yaml:"enabled"`
		Workers  int    `yaml:"workers"`
		Policy   string `yaml:"policy"`
		Strategy string `yaml:"strategy"`
		Seed     int64  `yaml:"seed"`
		// RetryBase and RetryMax bound the backoff after a failed timeout.
		RetryBase time.Duration `yaml:"retry_base"`
		RetryMax  time.Duration `yaml:"retry_max"`
	} `yaml:"arbiter"`

	Audit struct {
		QueueSize    int           `yaml:"queue_size"`
		Workers      int           `yaml:"workers"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		DrainTimeout time.Duration `yaml:"drain_timeout"`
	} `yaml:"audit"`

	// Gateway serves /ws/league from this process.
	Gateway struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"gateway"`
}

func defaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
		Port:     "8080",
		Store:    storePostgres,
	}
	arbiter := orchestrator.DefaultConfig()
	cfg.Arbiter.Enabled = true
	cfg.Arbiter.Workers = arbiter.Workers
	cfg.Arbiter.Policy = string(arbiter.Policy)
	cfg.Arbiter.Strategy = "ranked"
	cfg.Arbiter.RetryBase = arbiter.RetryBase
	cfg.Arbiter.RetryMax = arbiter.RetryMax

	rec := audit.DefaultConfig()
	cfg.Audit.QueueSize = rec.QueueSize
	cfg.Audit.Workers = rec.Workers
	cfg.Audit.WriteTimeout = rec.WriteTimeout
	cfg.Audit.DrainTimeout = 5 * time.Second
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults, then applies environment overrides. A missing file
// is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.Store = getEnv("STORE", config.Store)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Arbiter.Workers = getEnvAsInt("ARBITER_WORKERS", config.Arbiter.Workers)
	config.Arbiter.Policy = getEnv("TIMEOUT_POLICY", config.Arbiter.Policy)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case storePostgres, storeMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, err := orchestrator.ParseTimeoutPolicy(c.Arbiter.Policy); err != nil {
		return err
	}
	return nil
}

// logLevel is the configured level, or info when it is unset or unparseable.
func (c *Config) logLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", c.LogLevel).Msg("invalid log level, using info")
		return zerolog.InfoLevel
	}
	if level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) arbiterConfig(policy orchestrator.TimeoutPolicy) orchestrator.Config {
	return orchestrator.Config{
		Workers:   c.Arbiter.Workers,
		Policy:    policy,
		RetryBase: c.Arbiter.RetryBase,
		RetryMax:  c.Arbiter.RetryMax,
	}
}

func (c *Config) auditConfig() audit.Config {
	return audit.Config{
		QueueSize:    c.Audit.QueueSize,
		Workers:      c.Audit.Workers,
		WriteTimeout: c.Audit.WriteTimeout,
	}
}
