package config

import "time"

// DispatchConfig contains delivery tuning. There is no separate dispatch
// worker pool or handoff queue: the ingest engine delivers matched
// integrations inline in each source's loop, and the retry engine and
// scheduler deliver inline in their own loops.
type DispatchConfig struct {
	// WorkerCount is the configured dispatch worker count. It is validated
	// (1-100) but no other package reads it.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentDeliveries sets the per-integration outbound rate limit:
	// cmd/gateway passes it to deliver.New as the rate per second, with a
	// burst of twice the value. It does not cap in-flight deliveries.
	MaxConcurrentDeliveries int `yaml:"max_concurrent_deliveries"`

	// QueueDepth is the configured handoff queue size. It is validated but
	// no other package reads it, and ingest never blocks on it.
	QueueDepth int `yaml:"queue_depth"`

	// DeliveryTimeout is validated but no other package reads it; when an
	// integration's timeoutMs is not positive the deliverer uses a fixed
	// 30s timeout.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`

	// GracefulShutdownTimeout bounds how long cmd/gateway waits for the
	// ingest and admin HTTP servers to shut down. The engines' Stop()
	// calls are not bounded by it.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultDispatchConfig returns the built-in dispatch defaults.
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		WorkerCount:             10,
		MaxConcurrentDeliveries: 50,
		QueueDepth:              200,
		DeliveryTimeout:         30 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// IngestConfig contains polling/source configuration shared by all ingest
// workers regardless of source adapter variant.
type IngestConfig struct {
	// PollInterval is the base interval between polls when a source has no
	// backlog.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is random jitter added to PollInterval so that
	// multiple replicas polling the same source don't lockstep.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// BatchSize bounds how many events a single poll window returns.
	BatchSize int `yaml:"batch_size"`

	// TenantAllowlistTTL is how long the cached set of tenants with active
	// integrations is considered fresh before being re-read (§4.2).
	TenantAllowlistTTL time.Duration `yaml:"tenant_allowlist_ttl"`

	// MaxEventAgeDays drops events older than N days if > 0 (§6 env toggle
	// max_event_age_days).
	MaxEventAgeDays int `yaml:"max_event_age_days"`

	// BootstrapCheckpoint, if true, sets a source's checkpoint to the max
	// source id on first run instead of starting from zero (§6).
	BootstrapCheckpoint bool `yaml:"bootstrap_checkpoint"`

	// RestrictToActiveIntegrationTenants mirrors the
	// allowed_parents_from_integrations toggle in §6.
	RestrictToActiveIntegrationTenants bool `yaml:"allowed_parents_from_integrations"`
}

// DefaultIngestConfig returns the built-in ingest defaults.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		PollInterval:                       1 * time.Second,
		PollIntervalJitter:                 250 * time.Millisecond,
		BatchSize:                          100,
		TenantAllowlistTTL:                 30 * time.Second,
		MaxEventAgeDays:                    0,
		BootstrapCheckpoint:                false,
		RestrictToActiveIntegrationTenants: true,
	}
}
