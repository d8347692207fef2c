package relay

import (
	"fmt"
	"math/big"
)

// Config holds the relay's round parameters.
type Config struct {
	// ListenAddr is the address the websocket endpoint is served on.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// Threshold is the number of ready participants that make up a round.
	Threshold int `json:"threshold" yaml:"threshold"`

	// Base is the round modulus as a decimal string, so arbitrarily large
	// moduli survive YAML round trips.
	Base string `json:"base" yaml:"base"`
}

// ParseBase returns the configured modulus.
func (c *Config) ParseBase() (*big.Int, error) {
	base, ok := new(big.Int).SetString(c.Base, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base %q", c.Base)
	}
	if base.Sign() <= 0 {
		return nil, fmt.Errorf("base must be positive, got %s", base)
	}
	return base, nil
}

// Validate checks the round parameters.
func (c *Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	_, err := c.ParseBase()
	return err
}
