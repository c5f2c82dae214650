package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration comprehensively with clear error
// messages, failing fast on the first problem found.
type Validator struct {
	cfg      *Config
	tagCheck *validator.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, tagCheck: validator.New()}
}

// ValidateAll validates every configuration section in dependency order:
// dispatch and ingest tuning first (nothing depends on them), then the
// reliability knobs, then the source registry last since a bad source can
// only be diagnosed once everything else is known-good.
func (v *Validator) ValidateAll() error {
	if err := v.validateDispatch(); err != nil {
		return fmt.Errorf("dispatch validation failed: %w", err)
	}
	if err := v.validateIngest(); err != nil {
		return fmt.Errorf("ingest validation failed: %w", err)
	}
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	if err := v.validateCircuitBreaker(); err != nil {
		return fmt.Errorf("circuit breaker validation failed: %w", err)
	}
	if err := v.validateRetry(); err != nil {
		return fmt.Errorf("retry validation failed: %w", err)
	}
	if err := v.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	if err := v.validateSources(); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateDispatch() error {
	d := v.cfg.Dispatch
	if d == nil {
		return fmt.Errorf("dispatch configuration is nil")
	}
	if d.WorkerCount < 1 || d.WorkerCount > 100 {
		return fmt.Errorf("worker_count must be between 1 and 100, got %d", d.WorkerCount)
	}
	if d.MaxConcurrentDeliveries < 1 {
		return fmt.Errorf("max_concurrent_deliveries must be at least 1, got %d", d.MaxConcurrentDeliveries)
	}
	if d.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1, got %d", d.QueueDepth)
	}
	if d.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery_timeout must be positive, got %v", d.DeliveryTimeout)
	}
	if d.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", d.GracefulShutdownTimeout)
	}
	return nil
}

func (v *Validator) validateIngest() error {
	i := v.cfg.Ingest
	if i == nil {
		return fmt.Errorf("ingest configuration is nil")
	}
	if i.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", i.PollInterval)
	}
	if i.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", i.PollIntervalJitter)
	}
	if i.PollIntervalJitter >= i.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", i.PollIntervalJitter, i.PollInterval)
	}
	if i.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", i.BatchSize)
	}
	if i.TenantAllowlistTTL <= 0 {
		return fmt.Errorf("tenant_allowlist_ttl must be positive, got %v", i.TenantAllowlistTTL)
	}
	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}
	if r.ExecutionLogRetentionDays < 1 {
		return fmt.Errorf("execution_log_retention_days must be at least 1, got %d", r.ExecutionLogRetentionDays)
	}
	if r.ProcessedEventTTL <= 0 {
		return fmt.Errorf("processed_event_ttl must be positive, got %v", r.ProcessedEventTTL)
	}
	if r.ErrorLogRetentionDays < 1 {
		return fmt.Errorf("error_log_retention_days must be at least 1, got %d", r.ErrorLogRetentionDays)
	}
	if r.AuditRetentionDays < 1 {
		return fmt.Errorf("audit_retention_days must be at least 1, got %d", r.AuditRetentionDays)
	}
	if r.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %v", r.CleanupInterval)
	}
	return nil
}

func (v *Validator) validateCircuitBreaker() error {
	b := v.cfg.CircuitBreaker
	if b == nil {
		return fmt.Errorf("circuit breaker configuration is nil")
	}
	if b.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", b.Threshold)
	}
	if b.RecoveryTime <= 0 {
		return fmt.Errorf("recovery_time must be positive, got %v", b.RecoveryTime)
	}
	return nil
}

func (v *Validator) validateRetry() error {
	r := v.cfg.Retry
	if r == nil {
		return fmt.Errorf("retry configuration is nil")
	}
	if r.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", r.BatchSize)
	}
	if r.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", r.TickInterval)
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", r.Window)
	}
	if r.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", r.BaseDelay)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("max_delay must be >= base_delay, got max=%v base=%v", r.MaxDelay, r.BaseDelay)
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", r.SweepInterval)
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	s := v.cfg.Scheduler
	if s == nil {
		return fmt.Errorf("scheduler configuration is nil")
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", s.BatchSize)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", s.TickInterval)
	}
	if s.ProcessingIdleTimeout <= 0 {
		return fmt.Errorf("processing_idle_timeout must be positive, got %v", s.ProcessingIdleTimeout)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", s.SweepInterval)
	}
	if s.CancellationMatchWindow < 0 {
		return fmt.Errorf("cancellation_match_window must be non-negative, got %v", s.CancellationMatchWindow)
	}
	return nil
}

// validateSources runs struct-tag validation (required fields) via
// go-playground/validator, then the cross-field checks a tag can't express.
func (v *Validator) validateSources() error {
	for id, src := range v.cfg.Sources.GetAll() {
		if err := v.tagCheck.Struct(&src); err != nil {
			return NewValidationError("source", id, "", err)
		}

		if !src.Kind.IsValid() {
			return NewValidationError("source", id, "kind", fmt.Errorf("invalid source kind: %s", src.Kind))
		}

		switch src.Kind {
		case SourceKindRelational, SourceKindBroker:
			if src.DSN == "" {
				return NewValidationError("source", id, "dsn", ErrMissingRequiredField)
			}
		case SourceKindHTTPPush:
			if src.ListenAddr == "" {
				return NewValidationError("source", id, "listen_addr", ErrMissingRequiredField)
			}
			if src.AuthTokenEnv == "" {
				return NewValidationError("source", id, "auth_token_env", ErrMissingRequiredField)
			}
		}

		if src.Kind == SourceKindBroker && src.BrokerPartitionCount < 1 {
			return NewValidationError("source", id, "broker_partition_count", fmt.Errorf("must be at least 1"))
		}
	}

	return nil
}
