package config

import "time"

// CircuitBreakerConfig controls the default thresholds for the per-integration
// breaker (§4.6). Individual integrations may override Threshold and
// RecoveryTime via their own stored configuration; these are the system-wide
// defaults applied when an integration doesn't specify its own.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive infrastructure failures that
	// trips CLOSED -> OPEN.
	Threshold int `yaml:"threshold"`

	// RecoveryTime is how long the breaker stays OPEN before allowing a
	// single HALF_OPEN probe.
	RecoveryTime time.Duration `yaml:"recovery_time"`
}

// DefaultCircuitBreakerConfig returns the built-in breaker defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Threshold:    10,
		RecoveryTime: 5 * time.Minute,
	}
}

// RetryConfig controls the retry engine (§4.8).
type RetryConfig struct {
	// BatchSize is how many RETRYING logs are picked up per tick.
	BatchSize int `yaml:"batch_size"`

	// TickInterval is how often the retry engine runs.
	TickInterval time.Duration `yaml:"tick_interval"`

	// Window bounds how long a log may remain RETRYING before the sweeper
	// abandons it (default 4h, §4.8).
	Window time.Duration `yaml:"window"`

	// BaseDelay and MaxDelay parameterize the exponential backoff:
	// delay = min(BaseDelay * 2^(attempt-1), MaxDelay).
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`

	// SweepInterval is how often the stuck-RETRYING sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultRetryConfig returns the built-in retry engine defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		BatchSize:     10,
		TickInterval:  5 * time.Second,
		Window:        4 * time.Hour,
		BaseDelay:     30 * time.Second,
		MaxDelay:      15 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// SchedulerConfig controls the scheduled-delivery timer queue (§4.9).
type SchedulerConfig struct {
	// BatchSize is how many due entries are claimed per tick.
	BatchSize int `yaml:"batch_size"`

	// TickInterval is how often the scheduler polls for due entries.
	TickInterval time.Duration `yaml:"tick_interval"`

	// ProcessingIdleTimeout is how long an entry may go without a
	// heartbeat while PROCESSING before the sweeper restores it to PENDING
	// (default 10m, §4.9).
	ProcessingIdleTimeout time.Duration `yaml:"processing_idle_timeout"`

	// SweepInterval is how often the stuck-PROCESSING sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// HeartbeatInterval is how often an in-flight claim's
	// last_heartbeat_at is refreshed while process() is still running,
	// so a long ACTION_LIST delivery is never mistaken for an orphaned
	// claim by the sweeper.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// CancellationMatchWindow is the ± window used when matching a
	// cancellation against a scheduled entry's scheduledDateTime (§8
	// scenario 5 uses ±1 hour).
	CancellationMatchWindow time.Duration `yaml:"cancellation_match_window"`

	// BaseDelay and MaxDelay parameterize the reschedule backoff applied to
	// a scheduled entry after a transient delivery failure:
	// delay = min(BaseDelay * 2^(attempt-1), MaxDelay).
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		BatchSize:               10,
		TickInterval:            2 * time.Second,
		ProcessingIdleTimeout:   10 * time.Minute,
		SweepInterval:           1 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		CancellationMatchWindow: 1 * time.Hour,
		BaseDelay:               30 * time.Second,
		MaxDelay:                15 * time.Minute,
	}
}
