package config

// Defaults holds system-wide default settings. They are loaded and merged
// here, but no package outside pkg/config reads them: integration defaults
// come from the ent schema, deliveries are signed only with an
// integration's own secret, and audit payload summaries are not masked.
type Defaults struct {
	// TransformMode is the default Transformer mode (§4.5) used when an
	// integration does not declare one explicitly.
	TransformMode string `yaml:"transform_mode,omitempty"`

	// DeliveryMode is the default delivery mode (§4.9) for newly matched
	// integrations: IMMEDIATE, DELAYED or RECURRING.
	DeliveryMode string `yaml:"delivery_mode,omitempty"`

	// SigningSecretEnv names the environment variable for a default HMAC
	// signing secret.
	SigningSecretEnv string `yaml:"signing_secret_env,omitempty"`

	// PayloadMasking holds payload masking settings: an enabled flag and
	// the field names to redact.
	PayloadMasking *PayloadMaskingDefaults `yaml:"payload_masking,omitempty"`
}

// PayloadMaskingDefaults names sensitive event fields for redaction (§6).
type PayloadMaskingDefaults struct {
	Enabled      bool     `yaml:"enabled"`
	MaskedFields []string `yaml:"masked_fields,omitempty"`
}

// DefaultDefaults returns the built-in system-wide defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		TransformMode: "simple",
		DeliveryMode:  "immediate",
		PayloadMasking: &PayloadMaskingDefaults{
			Enabled:      true,
			MaskedFields: []string{"password", "ssn", "creditCard", "apiKey"},
		},
	}
}
