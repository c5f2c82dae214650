package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseValidConfig() *Config {
	return &Config{
		Defaults:       DefaultDefaults(),
		Dispatch:       DefaultDispatchConfig(),
		Ingest:         DefaultIngestConfig(),
		Retention:      DefaultRetentionConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Retry:          DefaultRetryConfig(),
		Scheduler:      DefaultSchedulerConfig(),
		Sources:        NewSourceRegistry(nil),
	}
}

func TestValidateDispatchRejectsZeroWorkers(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Dispatch.WorkerCount = 0

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "worker_count")
}

func TestValidateIngestRejectsJitterEqualToInterval(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Ingest.PollIntervalJitter = cfg.Ingest.PollInterval

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "poll_interval_jitter")
}

func TestValidateRetryRejectsMaxDelayBelowBase(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Retry.MaxDelay = cfg.Retry.BaseDelay - 1

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "max_delay")
}

func TestValidateSourcesRequiresDSNForRelational(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Sources = NewSourceRegistry(map[string]SourceConfig{
		"broken": {ID: "broken", Kind: SourceKindRelational},
	})

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "dsn")
}

func TestValidateSourcesRequiresAuthTokenForHTTPPush(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Sources = NewSourceRegistry(map[string]SourceConfig{
		"webhook": {ID: "webhook", Kind: SourceKindHTTPPush, ListenAddr: ":8090"},
	})

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "auth_token_env")
}

func TestValidateSourcesRejectsUnknownKind(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Sources = NewSourceRegistry(map[string]SourceConfig{
		"mystery": {ID: "mystery", Kind: "carrier_pigeon"},
	})

	err := NewValidator(cfg).ValidateAll()
	assert.ErrorContains(t, err, "invalid source kind")
}
