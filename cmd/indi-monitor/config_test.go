package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
addr: astroberry.local:7624
devices:
  - CCD Simulator
  - Telescope Simulator
log_level: debug
protocol_log: session.ilog
reconnect: false
blobs: true
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "astroberry.local:7624", config.Addr)
	assert.Equal(t, []string{"CCD Simulator", "Telescope Simulator"}, config.Devices)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "session.ilog", config.ProtocolLog)
	assert.False(t, config.Reconnect)
	assert.True(t, config.Blobs)
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `addr: 10.0.0.5`))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", config.Addr)
	assert.Equal(t, "info", config.LogLevel)
	assert.True(t, config.Reconnect)
	assert.Empty(t, config.Devices)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "addr: [not, a, string"))
	assert.Error(t, err)
}

func TestWantsDevice(t *testing.T) {
	all := DefaultConfig()
	assert.True(t, all.WantsDevice("CCD Simulator"))

	some := Config{Devices: []string{"CCD Simulator"}}
	assert.True(t, some.WantsDevice("CCD Simulator"))
	assert.False(t, some.WantsDevice("Telescope Simulator"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"CCD Simulator", "Focuser"}, splitList("CCD Simulator, Focuser"))
	assert.Nil(t, splitList(""))
}
