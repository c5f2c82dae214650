package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// GatewayYAMLConfig represents the optional gateway.yaml override file.
// Every section is optional; anything left unset keeps its built-in
// default from Default*Config().
type GatewayYAMLConfig struct {
	Defaults       *Defaults               `yaml:"defaults"`
	Dispatch       *DispatchConfig         `yaml:"dispatch"`
	Ingest         *IngestConfig           `yaml:"ingest"`
	Retention      *RetentionConfig        `yaml:"retention"`
	CircuitBreaker *CircuitBreakerConfig   `yaml:"circuit_breaker"`
	Retry          *RetryConfig            `yaml:"retry"`
	Scheduler      *SchedulerConfig        `yaml:"scheduler"`
	Sources        map[string]SourceConfig `yaml:"sources"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point used by cmd/gateway.
//
// Steps performed:
//  1. Load the optional gateway.yaml override file from configDir
//  2. Expand environment variables
//  3. Merge built-in defaults with any user-provided overrides
//  4. Build the source registry
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("component", "config", "config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized", "sources", stats.Sources)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadGatewayYAML()
	if err != nil {
		return nil, NewLoadError("gateway.yaml", err)
	}

	dispatch := DefaultDispatchConfig()
	if yamlCfg.Dispatch != nil {
		if err := mergo.Merge(dispatch, yamlCfg.Dispatch, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge dispatch config: %w", err)
		}
	}

	ingest := DefaultIngestConfig()
	if yamlCfg.Ingest != nil {
		if err := mergo.Merge(ingest, yamlCfg.Ingest, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge ingest config: %w", err)
		}
	}

	retention := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retention, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	breaker := DefaultCircuitBreakerConfig()
	if yamlCfg.CircuitBreaker != nil {
		if err := mergo.Merge(breaker, yamlCfg.CircuitBreaker, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge circuit breaker config: %w", err)
		}
	}

	retry := DefaultRetryConfig()
	if yamlCfg.Retry != nil {
		if err := mergo.Merge(retry, yamlCfg.Retry, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retry config: %w", err)
		}
	}

	scheduler := DefaultSchedulerConfig()
	if yamlCfg.Scheduler != nil {
		if err := mergo.Merge(scheduler, yamlCfg.Scheduler, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge scheduler config: %w", err)
		}
	}

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = DefaultDefaults()
	} else if err := mergo.Merge(defaults, DefaultDefaults()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	sources := make(map[string]SourceConfig, len(yamlCfg.Sources))
	for id, s := range yamlCfg.Sources {
		merged := *DefaultSourceConfig()
		if err := mergo.Merge(&merged, s, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge source %q: %w", id, err)
		}
		merged.ID = id
		sources[id] = merged
	}

	return &Config{
		configDir:      configDir,
		Defaults:       defaults,
		Dispatch:       dispatch,
		Ingest:         ingest,
		Retention:      retention,
		CircuitBreaker: breaker,
		Retry:          retry,
		Scheduler:      scheduler,
		Sources:        NewSourceRegistry(sources),
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

// loadGatewayYAML loads the optional override file. A missing file is not
// an error: it simply means every section keeps its built-in default.
func (l *configLoader) loadGatewayYAML() (*GatewayYAMLConfig, error) {
	cfg := &GatewayYAMLConfig{Sources: make(map[string]SourceConfig)}

	path := filepath.Join(l.configDir, "gateway.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]SourceConfig)
	}

	return cfg, nil
}
