// Package config defines the receiver's session configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ClientConfig is the per-session configuration. It is resolved once at
// startup (defaults, then an optional TOML file, then flag overrides) and
// never mutated while the receive loop runs.
type ClientConfig struct {
	// ServerIP is the camera server address (IP or hostname).
	ServerIP string `toml:"server_ip"`

	// Port is the camera server TCP port.
	Port int `toml:"port"`

	// OutputDir receives persisted frames; created if absent.
	OutputDir string `toml:"output_dir"`

	// EnableSave is the master switch for frame persistence.
	EnableSave bool `toml:"enable_save"`

	// EnableConversion additionally writes saved frames in unpacked
	// 16-bit form next to the raw payload.
	EnableConversion bool `toml:"enable_conversion"`

	// SaveInterval persists only every Nth received frame.
	SaveInterval int `toml:"save_interval"`

	// ReadTimeoutSec is the per-read deadline in seconds.
	ReadTimeoutSec int `toml:"read_timeout_sec"`

	// ListenAddr is the HTTP status API listen address; empty disables it.
	ListenAddr string `toml:"listen"`

	// DBPath is the sqlite frame index; empty disables the index.
	DBPath string `toml:"db_path"`

	// PoolSize is the number of frame buffers in flight.
	PoolSize int `toml:"pool_size"`

	// MaxFrameMB bounds a single frame payload and sizes pool buffers.
	MaxFrameMB int `toml:"max_frame_mb"`

	// FalseColor selects the false-colour preview palette.
	FalseColor bool `toml:"false_color"`
}

// Default returns the configuration the original desktop client shipped
// with: the capture board's factory address and a 10 second stream timeout.
func Default() ClientConfig {
	return ClientConfig{
		ServerIP:         "172.32.0.93",
		Port:             8888,
		OutputDir:        "frames",
		EnableSave:       false,
		EnableConversion: true,
		SaveInterval:     1,
		ReadTimeoutSec:   10,
		ListenAddr:       ":8080",
		DBPath:           "camlink.db",
		PoolSize:         4,
		MaxFrameMB:       8,
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (ClientConfig, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks a resolved configuration.
func (c ClientConfig) Validate() error {
	if c.ServerIP == "" {
		return fmt.Errorf("server_ip is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.SaveInterval < 1 {
		return fmt.Errorf("save_interval must be at least 1, got %d", c.SaveInterval)
	}
	if c.ReadTimeoutSec < 1 {
		return fmt.Errorf("read_timeout_sec must be at least 1, got %d", c.ReadTimeoutSec)
	}
	if c.PoolSize < 2 {
		return fmt.Errorf("pool_size must be at least 2, got %d", c.PoolSize)
	}
	if c.MaxFrameMB < 1 || c.MaxFrameMB > 50 {
		return fmt.Errorf("max_frame_mb %d out of range [1,50]", c.MaxFrameMB)
	}
	if c.EnableSave && c.OutputDir == "" {
		return fmt.Errorf("output_dir is required when enable_save is set")
	}
	return nil
}

// ServerAddr returns the dial target.
func (c ClientConfig) ServerAddr() string {
	return net.JoinHostPort(c.ServerIP, strconv.Itoa(c.Port))
}

// ReadTimeout returns the per-read deadline as a duration.
func (c ClientConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// MaxFrameBytes returns the payload bound in bytes.
func (c ClientConfig) MaxFrameBytes() uint32 {
	return uint32(c.MaxFrameMB) * 1024 * 1024
}
