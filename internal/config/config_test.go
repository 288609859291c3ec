package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "172.32.0.93:8888", cfg.ServerAddr())
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout())
	assert.Equal(t, uint32(8*1024*1024), cfg.MaxFrameBytes())
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "camlink.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_ip = "10.0.0.5"
port = 9000
enable_save = true
save_interval = 30
false_color = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "10.0.0.5:9000", cfg.ServerAddr())
	assert.True(t, cfg.EnableSave)
	assert.Equal(t, 30, cfg.SaveInterval)
	assert.True(t, cfg.FalseColor)

	// Untouched keys keep their defaults.
	assert.Equal(t, "frames", cfg.OutputDir)
	assert.Equal(t, 10, cfg.ReadTimeoutSec)
	assert.True(t, cfg.EnableConversion)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadBadTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("server_ip = [broken"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	mutations := []struct {
		name string
		mut  func(*ClientConfig)
	}{
		{"empty server", func(c *ClientConfig) { c.ServerIP = "" }},
		{"port too low", func(c *ClientConfig) { c.Port = 0 }},
		{"port too high", func(c *ClientConfig) { c.Port = 70000 }},
		{"zero save interval", func(c *ClientConfig) { c.SaveInterval = 0 }},
		{"zero read timeout", func(c *ClientConfig) { c.ReadTimeoutSec = 0 }},
		{"pool too small", func(c *ClientConfig) { c.PoolSize = 1 }},
		{"frame bound too large", func(c *ClientConfig) { c.MaxFrameMB = 51 }},
		{"save without output dir", func(c *ClientConfig) { c.EnableSave = true; c.OutputDir = "" }},
	}
	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
