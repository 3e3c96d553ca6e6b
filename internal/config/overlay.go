package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling, accepting Go
// duration strings ("30s", "2.5s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AsDuration returns the time.Duration value.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// OperationalOverlay sets the non-secret numeric knobs (timeouts, poll
// interval, required confirmations, fee rate) from a YAML file without
// redeploying, layered on top of env-sourced Config. Every field is
// optional; a zero value means "use Config's default". The poll interval
// and fee rate are copied onto Config but no component reads them.
type OperationalOverlay struct {
	VerifierSubmitTimeout Duration `yaml:"verifier_submit_timeout"`
	VerifierHealthTimeout Duration `yaml:"verifier_health_timeout"`
	OOBITimeout           Duration `yaml:"oobi_timeout"`
	RootOfTrustTimeout    Duration `yaml:"root_of_trust_timeout"`

	ConfirmationPollInterval Duration `yaml:"confirmation_poll_interval"`
	RequiredConfirmations    int      `yaml:"required_confirmations"`
	FeePerKB                 int64    `yaml:"fee_per_kb_satoshis"`
	BaselineFeeSatoshis      int64    `yaml:"baseline_fee_satoshis"`
}

// LoadOperationalOverlay reads and parses an OperationalOverlay from path.
func LoadOperationalOverlay(path string) (*OperationalOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read overlay %s: %w", path, err)
	}
	var overlay OperationalOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("config: parse overlay %s: %w", path, err)
	}
	return &overlay, nil
}

// ApplyTo merges non-zero overlay fields onto cfg, overriding the env
// defaults for the knobs it names.
func (o *OperationalOverlay) ApplyTo(cfg *Config) {
	if o == nil {
		return
	}
	if o.VerifierSubmitTimeout > 0 {
		cfg.VerifierSubmitTimeout = o.VerifierSubmitTimeout.AsDuration()
	}
	if o.VerifierHealthTimeout > 0 {
		cfg.VerifierHealthTimeout = o.VerifierHealthTimeout.AsDuration()
	}
	if o.OOBITimeout > 0 {
		cfg.OOBITimeout = o.OOBITimeout.AsDuration()
	}
	if o.RootOfTrustTimeout > 0 {
		cfg.RootOfTrustTimeout = o.RootOfTrustTimeout.AsDuration()
	}
	if o.ConfirmationPollInterval > 0 {
		cfg.ConfirmationPollInterval = o.ConfirmationPollInterval.AsDuration()
	}
	if o.RequiredConfirmations > 0 {
		cfg.RequiredConfirmations = o.RequiredConfirmations
	}
	if o.FeePerKB > 0 {
		cfg.FeePerKB = o.FeePerKB
	}
	if o.BaselineFeeSatoshis > 0 {
		cfg.BaselineFeeSatoshis = o.BaselineFeeSatoshis
	}
}
