package util

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "comm.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseConfig(t *testing.T) {
	t.Setenv("PLAY_TIMEOUT", "")
	path := writeConfig(t, `
actionTimeoutSec: 30
settledCacheSize: 16
codec: proto
`)
	cfg, err := ParseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout())
	assert.Equal(t, 16, cfg.SettledCacheSize)
	assert.Equal(t, "proto", cfg.Codec)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().InboundBurst, cfg.InboundBurst)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout())
}

func TestParseConfigMissingFile(t *testing.T) {
	t.Setenv("PLAY_TIMEOUT", "")
	cfg, err := ParseConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigErrors(t *testing.T) {
	t.Setenv("PLAY_TIMEOUT", "")
	_, err := ParseConfig(writeConfig(t, "actionTimeoutSec: [1, 2"))
	assert.Error(t, err)

	_, err = ParseConfig(writeConfig(t, "codec: xml"))
	assert.Error(t, err)
}

func TestPlayTimeoutOverridesConfig(t *testing.T) {
	t.Setenv("PLAY_TIMEOUT", "7")
	cfg, err := ParseConfig(writeConfig(t, "actionTimeoutSec: 30"))
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.ActionTimeout())
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("PLAY_TIMEOUT", "")
	t.Setenv("PING_TIMEOUT", "")
	t.Setenv("TRANSPORT", "")
	t.Setenv("PERSIST_METHOD", "")
	t.Setenv("DEBUG_CONNECTIVITY_CHECK", "")
	assert.Equal(t, 62, Env.GetPlayTimeout())
	assert.Equal(t, 3, Env.GetPingTimeout())
	assert.Equal(t, "ws", Env.GetTransport())
	assert.Equal(t, "memory", Env.GetPersistMethod())
	assert.False(t, Env.ShouldDebugConnectivityCheck())

	t.Setenv("DEBUG_CONNECTIVITY_CHECK", "TRUE")
	assert.True(t, Env.ShouldDebugConnectivityCheck())

	t.Setenv("TRANSPORT", "carrier-pigeon")
	assert.Panics(t, func() { Env.GetTransport() })
}
