package config

// Config is the umbrella configuration object threaded through every
// long-running component: the ingest pollers, the dispatch pool, the
// retry engine and the scheduler.
type Config struct {
	configDir string // configuration directory path, for reference/logging

	Defaults *Defaults

	Dispatch       *DispatchConfig
	Ingest         *IngestConfig
	Retention      *RetentionConfig
	CircuitBreaker *CircuitBreakerConfig
	Retry          *RetryConfig
	Scheduler      *SchedulerConfig

	// Sources holds every configured source adapter instance, keyed by
	// SourceConfig.ID.
	Sources *SourceRegistry
}

// Initialize is defined in loader.go.

// ConfigStats summarizes loaded configuration for startup logging.
type ConfigStats struct {
	Sources int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Sources: len(c.Sources.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetSource retrieves a source adapter configuration by id.
func (c *Config) GetSource(id string) (*SourceConfig, error) {
	return c.Sources.Get(id)
}
