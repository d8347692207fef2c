package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
participant:
  relay_url: ws://relay:9000/ws
  name: alice
  value: "42"
relay:
  threshold: 5
  base: "340282366920938463463374607431768211297"
audit:
  store: bolt
  bolt_path: /tmp/audit.db
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "ws://relay:9000/ws", cfg.Participant.RelayURL)
	require.Equal(t, ":8083", cfg.Participant.APIAddr)

	v, err := cfg.Participant.PrivateValue()
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int64())

	require.Equal(t, 5, cfg.Relay.Threshold)
	require.Equal(t, ":8001", cfg.Relay.ListenAddr)
	base, err := cfg.Relay.ParseBase()
	require.NoError(t, err)
	require.Equal(t, "340282366920938463463374607431768211297", base.String())

	require.Equal(t, audit.StoreBolt, cfg.Audit.Store)
	require.Equal(t, 5432, cfg.Audit.Postgres.Port)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relay: [unterminated"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigurationDefaults(t *testing.T) {
	cfg, err := LoadConfiguration("")
	require.NoError(t, err)
	require.NoError(t, cfg.Relay.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", true)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", false)
	require.Error(t, err)
}
