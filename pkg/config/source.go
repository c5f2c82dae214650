package config

import "time"

// SourceKind identifies a source adapter variant (§4.2).
type SourceKind string

const (
	SourceKindRelational SourceKind = "relational"
	SourceKindBroker     SourceKind = "broker"
	SourceKindHTTPPush   SourceKind = "http_push"
)

// IsValid reports whether k is one of the known source kinds.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindRelational, SourceKindBroker, SourceKindHTTPPush:
		return true
	}
	return false
}

// SourceConfig describes a single configured source adapter instance.
// Multiple sources may run concurrently, each feeding the same ingest
// pipeline (§4.2).
type SourceConfig struct {
	ID   string     `yaml:"id" validate:"required"`
	Kind SourceKind `yaml:"kind" validate:"required"`

	// DSN is the connection string for a relational source, or the
	// dial target for a broker source. Unused by http_push.
	DSN string `yaml:"dsn,omitempty"`

	// ListenAddr is the bind address for an http_push source.
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// AuthTokenEnv names the environment variable holding the shared
	// secret an http_push caller must present.
	AuthTokenEnv string `yaml:"auth_token_env,omitempty"`

	// BrokerTopic/BrokerPartitionCount apply only to broker sources.
	BrokerTopic          string `yaml:"broker_topic,omitempty"`
	BrokerPartitionCount int    `yaml:"broker_partition_count,omitempty"`
}

// DefaultSourceConfig returns a zero-value SourceConfig's defaults
// (everything besides ID/Kind, which must be supplied by the operator).
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		ListenAddr:           ":8090",
		AuthTokenEnv:         "GATEWAY_INGEST_TOKEN",
		BrokerPartitionCount: 1,
	}
}

// checkpointBootstrapWindow is a 24h bootstrap window. Nothing references
// it: relational bootstrap (IngestConfig.BootstrapCheckpoint) seeds the
// checkpoint from the source's current max id with no time bound.
const checkpointBootstrapWindow = 24 * time.Hour
