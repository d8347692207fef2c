package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/mbiss10/secure-aggregation/crypto"
	"github.com/mbiss10/secure-aggregation/relay"
)

// =====================================
// Configuration Generators
// =====================================

// RelayConfigOption is a function that modifies a relay.Config
type RelayConfigOption func(*relay.Config)

// WithThreshold sets the number of participants per round
func WithThreshold(n int) RelayConfigOption {
	return func(cfg *relay.Config) {
		cfg.Threshold = n
	}
}

// WithBase sets the round modulus
func WithBase(base int64) RelayConfigOption {
	return func(cfg *relay.Config) {
		cfg.Base = big.NewInt(base).String()
	}
}

// WithBigBase sets the round modulus from a decimal string
func WithBigBase(base string) RelayConfigOption {
	return func(cfg *relay.Config) {
		cfg.Base = base
	}
}

// NewTestRelayConfig creates a relay config for a three participant round
// modulo 1000, customized by options.
func NewTestRelayConfig(options ...RelayConfigOption) *relay.Config {
	cfg := &relay.Config{
		ListenAddr: "127.0.0.1:0",
		Threshold:  3,
		Base:       "1000",
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// =====================================
// Randomness and logging
// =====================================

// NewKeyedPRNG returns a deterministic perturbation source for seed.
func NewKeyedPRNG(seed string) *crypto.KeyedPRNG {
	prng, err := crypto.NewKeyedPRNG([]byte(seed))
	if err != nil {
		panic(fmt.Sprintf("keyed prng: %v", err))
	}
	return prng
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SumMod returns the sum of values modulo base.
func SumMod(base int64, values ...int64) int64 {
	sum := big.NewInt(0)
	for _, v := range values {
		sum.Add(sum, big.NewInt(v))
	}
	return crypto.Mod(sum, big.NewInt(base)).Int64()
}
