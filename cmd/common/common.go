// Package common provides shared utilities for the secure aggregation
// binaries (participant, relay, audit):
//
//   - YAML configuration files with per-service sections
//   - slog logger construction from level and format flags
//   - flag override helpers
package common

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/mbiss10/secure-aggregation/protocol"
	"github.com/mbiss10/secure-aggregation/relay"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shared by all binaries. Each binary
// reads the logging settings and its own section.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Participant protocol.ParticipantConfig `yaml:"participant"`
	Relay       relay.Config               `yaml:"relay"`
	Audit       audit.Config               `yaml:"audit"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Participant: protocol.ParticipantConfig{
			RelayURL: "ws://localhost:8001/ws",
			APIAddr:  ":8083",
		},
		Relay: relay.Config{
			ListenAddr: ":8001",
			Threshold:  3,
			Base:       "1000000007",
		},
		Audit: audit.Config{
			ListenAddr: ":8002",
			Store:      audit.StoreMemory,
			BoltPath:   "audit.db",
			Postgres: audit.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "audit",
			},
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadConfiguration loads path, or the defaults when path is empty.
func LoadConfiguration(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	return DefaultConfig(), nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func NewLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// IsFlagSet reports whether the named flag was passed on the command line.
func IsFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// OverrideString sets *dst to value if the flag was passed explicitly or
// *dst is still empty.
func OverrideString(dst *string, name, value string) {
	if IsFlagSet(name) || *dst == "" {
		*dst = value
	}
}
