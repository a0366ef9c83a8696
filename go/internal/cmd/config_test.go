package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, storePostgres, config.Store)
	assert.True(t, config.Arbiter.Enabled)
	assert.Equal(t, string(orchestrator.PolicySkip), config.Arbiter.Policy)
	assert.Equal(t, 1024, config.Audit.QueueSize)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
store: memory
arbiter:
  enabled: true
  workers: 2
  policy: pause
  strategy: random
  seed: 42
audit:
  queue_size: 16
  write_timeout: 500ms
gateway:
  enabled: true
`)
	t.Setenv("PORT", "9090")

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", config.Port)
	assert.Equal(t, storeMemory, config.Store)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 2, config.Arbiter.Workers)
	assert.Equal(t, "pause", config.Arbiter.Policy)
	assert.Equal(t, int64(42), config.Arbiter.Seed)
	assert.Equal(t, 16, config.Audit.QueueSize)
	assert.Equal(t, 500*time.Millisecond, config.Audit.WriteTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, config.Audit.DrainTimeout)
	assert.True(t, config.Gateway.Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "store", body: "store: redis\n"},
		{name: "policy", body: "arbiter:\n  policy: retry\n"},
		{name: "log level", body: "log_level: loud\n"},
		{name: "yaml", body: "arbiter: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfig_LogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "warn", want: zerolog.WarnLevel},
		{level: "", want: zerolog.InfoLevel},
		{level: "loud", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			config := defaultConfig()
			config.LogLevel = tt.level
			assert.Equal(t, tt.want, config.logLevel())
		})
	}
}

func TestConfig_ArbiterRetry(t *testing.T) {
	config, err := loadConfig(writeConfig(t, "arbiter:\n  retry_base: 250ms\n"))
	require.NoError(t, err)

	cfg := config.arbiterConfig(orchestrator.PolicySkip)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, orchestrator.DefaultConfig().RetryMax, cfg.RetryMax)
	assert.Equal(t, orchestrator.DefaultConfig().Workers, cfg.Workers)
}

func TestSetupServices_Memory(t *testing.T) {
	config := defaultConfig()
	config.Store = storeMemory
	config.Gateway.Enabled = true

	services, err := setupServices(config, nil, clockwork.NewFakeClock())
	require.NoError(t, err)

	assert.NotNil(t, services.DraftRoom)
	assert.NotNil(t, services.Arbiter)
	assert.NotNil(t, services.Gateway)
	assert.Len(t, services.runners(), 3)
}

func TestSetupServices_ArbiterDisabled(t *testing.T) {
	config := defaultConfig()
	config.Store = storeMemory
	config.Arbiter.Enabled = false

	services, err := setupServices(config, nil, clockwork.NewFakeClock())
	require.NoError(t, err)

	assert.Nil(t, services.Arbiter)
	assert.Nil(t, services.Gateway)
	assert.Len(t, services.runners(), 1)
}

func TestSetupServices_PostgresNeedsDatabase(t *testing.T) {
	_, err := setupServices(defaultConfig(), nil, clockwork.NewFakeClock())
	assert.Error(t, err)
}
