package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the monitor configuration. Values from the config file
// are overridden by command-line flags.
type Config struct {
	// Addr is the INDI server address (host or host:port).
	Addr string `yaml:"addr"`

	// Discover finds a server via mDNS instead of dialing Addr.
	Discover bool `yaml:"discover"`

	// Interface restricts mDNS discovery to one network interface.
	Interface string `yaml:"interface"`

	// Devices limits monitoring to the named devices. Empty means all.
	Devices []string `yaml:"devices"`

	// LogLevel is the slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ProtocolLog is the path of the CBOR capture file to write.
	ProtocolLog string `yaml:"protocol_log"`

	// Reconnect redials automatically when the connection drops.
	Reconnect bool `yaml:"reconnect"`

	// Blobs opts in to BLOB delivery for monitored devices.
	Blobs bool `yaml:"blobs"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:7624",
		LogLevel:  "info",
		Reconnect: true,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, nil
}

// WantsDevice reports whether the named device should be monitored.
func (c *Config) WantsDevice(name string) bool {
	if len(c.Devices) == 0 {
		return true
	}
	for _, d := range c.Devices {
		if d == name {
			return true
		}
	}
	return false
}
