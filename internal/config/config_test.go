package config

import (
	"testing"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) Config {
	t.Helper()
	k := koanf.New(".")
	require.NoError(t, k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()))

	var cfg Config
	require.NoError(t, k.Unmarshal("", &cfg))
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "transaction-engine", cfg.Application)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Accounts.RequestTimeout)
	assert.Equal(t, 2, cfg.Accounts.MaxRetries)
	assert.Equal(t, "transaction-completed", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Reconciler.Lookback)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Application = ""
	cfg.Postgres.URI = ""
	cfg.Accounts.RequestTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateKafkaTopicRequiredWithBrokers(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Kafka.Topic = ""
	require.Error(t, cfg.Validate())

	// No brokers means no publishing; the topic may then be empty.
	cfg.Kafka.Brokers = nil
	require.NoError(t, cfg.Validate())
}

func TestValidateReconcilerInterval(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Reconciler.Interval = 0
	require.Error(t, cfg.Validate())

	cfg.Reconciler.Enabled = false
	require.NoError(t, cfg.Validate())
}

func TestFileOverridesDefaults(t *testing.T) {
	override := []byte(`
server:
  port: "9090"
accounts:
  max_retries: 5
`)
	k := koanf.New(".")
	require.NoError(t, k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()))
	require.NoError(t, k.Load(rawbytes.Provider(override), yaml.Parser()))

	var cfg Config
	require.NoError(t, k.Unmarshal("", &cfg))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Accounts.MaxRetries)
	// Untouched keys keep their defaults.
	assert.Equal(t, "transaction-engine", cfg.Application)
}
