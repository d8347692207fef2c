package protocol

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/mbiss10/secure-aggregation/crypto"
)

// ParticipantConfig provides configuration parameters for a participant.
type ParticipantConfig struct {
	// RelayURL is the websocket endpoint of the relay, e.g. ws://localhost:8001/ws.
	RelayURL string `json:"relay_url" yaml:"relay_url"`

	// Name is a display name. It is only ever sent to the audit side channel.
	Name string `json:"name" yaml:"name"`

	// Value is the private contribution, if known at startup. When empty the
	// value must be submitted through the local API.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// PRNGSeed is a hex key for a deterministic perturbation stream.
	// Only for tests and reproducible demos; leave empty in real use.
	PRNGSeed string `json:"prng_seed,omitempty" yaml:"prng_seed,omitempty"`

	// AuditURL enables the insecure reporting side channel when set.
	AuditURL string `json:"audit_url,omitempty" yaml:"audit_url,omitempty"`

	// APIAddr is the listen address of the local value-submission API.
	// Empty disables it.
	APIAddr string `json:"api_addr,omitempty" yaml:"api_addr,omitempty"`
}

// PrivateValue parses Value. It returns nil when no value is configured.
func (c *ParticipantConfig) PrivateValue() (*big.Int, error) {
	if c.Value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(c.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid private value %q", c.Value)
	}
	return v, nil
}

// PRNG returns the perturbation randomness source described by the config.
func (c *ParticipantConfig) PRNG() (crypto.PRNG, error) {
	if c.PRNGSeed == "" {
		return crypto.NewSystemPRNG(), nil
	}
	seed, err := hex.DecodeString(c.PRNGSeed)
	if err != nil {
		return nil, fmt.Errorf("invalid prng seed: %w", err)
	}
	prng, err := crypto.NewKeyedPRNG(seed)
	if err != nil {
		return nil, err
	}
	return prng, nil
}
