package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roguevault/internal/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "0.0.0.0:7777", cfg.Net.ListenAddress)
	assert.Equal(t, uint32(0x524F4755), cfg.Net.ProtocolID)
	assert.Equal(t, 1*time.Second, cfg.Net.HandshakeResendEvery)
	assert.Equal(t, ".rgb", cfg.Script.BytecodeExtension)
	assert.Equal(t, "data", cfg.Battle.DataDir)
}

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roguevault.yaml")
	contents := "net:\n  listen_address: \"127.0.0.1:9999\"\nbattle:\n  data_dir: \"testdata\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Net.ListenAddress)
	assert.Equal(t, "testdata", cfg.Battle.DataDir)
	// Fields absent from the overlay keep their defaults.
	assert.Equal(t, uint32(0x524F4755), cfg.Net.ProtocolID)
	assert.Equal(t, ".rgb", cfg.Script.BytecodeExtension)
}

func TestLoadMalformedYAMLIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("net: [this is not a mapping"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
