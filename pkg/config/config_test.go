package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigsAreInternallyValid(t *testing.T) {
	cfg := &Config{
		Defaults:       DefaultDefaults(),
		Dispatch:       DefaultDispatchConfig(),
		Ingest:         DefaultIngestConfig(),
		Retention:      DefaultRetentionConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Retry:          DefaultRetryConfig(),
		Scheduler:      DefaultSchedulerConfig(),
		Sources:        NewSourceRegistry(nil),
	}

	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestConfigStats(t *testing.T) {
	sources := map[string]SourceConfig{
		"orders-db": {ID: "orders-db", Kind: SourceKindRelational, DSN: "postgres://x"},
	}
	cfg := &Config{Sources: NewSourceRegistry(sources)}

	assert.Equal(t, 1, cfg.Stats().Sources)
}

func TestGetSourceNotFound(t *testing.T) {
	cfg := &Config{Sources: NewSourceRegistry(nil)}

	_, err := cfg.GetSource("missing")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}
