// Package config provides configuration and CLI argument parsing for the
// time-shift player, grounded on
// agalue-sherpa-voice-assistant/internal/config.ParseFlags's
// DefaultConfig/ParseFlags shape using the stdlib flag package.
package config

import (
	"flag"
	"fmt"
)

// Config holds all configuration, populated from CLI flags or defaults.
type Config struct {
	// InputDeviceFilter is matched case-insensitively against capture
	// device names; the result must also be a recognized virtual/loopback
	// device (internal/device's selection policy).
	InputDeviceFilter string
	// OutputDeviceFilter is matched case-insensitively against playback
	// device names. Empty means "prefer the system default output".
	OutputDeviceFilter string
	// BufferSeconds sizes the time-shift ring buffer's history window.
	BufferSeconds int
	// BaseDelayMs is the initial target delay applied at startup.
	BaseDelayMs int
	// ListDevices, when true, prints enumerated devices and exits instead
	// of starting the player.
	ListDevices bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InputDeviceFilter:  "BlackHole",
		OutputDeviceFilter: "",
		BufferSeconds:      60,
		BaseDelayMs:        0,
		ListDevices:        false,
	}
}

// ParseFlags parses command-line flags and returns a validated Config.
// When -l is given the Config is returned without validation.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.StringVar(&cfg.InputDeviceFilter, "i", cfg.InputDeviceFilter, "Input device name filter (must match a virtual/loopback device, e.g. BlackHole, Soundflower)")
	flag.StringVar(&cfg.OutputDeviceFilter, "o", cfg.OutputDeviceFilter, "Output device name filter (empty = system default physical output)")
	flag.IntVar(&cfg.BufferSeconds, "b", cfg.BufferSeconds, "Seconds of audio history the time-shift buffer retains")
	flag.IntVar(&cfg.BaseDelayMs, "d", cfg.BaseDelayMs, "Initial playback delay in milliseconds")
	flag.BoolVar(&cfg.ListDevices, "l", cfg.ListDevices, "List available input/output devices and exit")

	flag.Parse()

	if cfg.ListDevices {
		return cfg, nil
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("invalid -b %d: buffer seconds must be positive", c.BufferSeconds)
	}
	if c.BaseDelayMs < 0 {
		return fmt.Errorf("invalid -d %d: base delay must not be negative", c.BaseDelayMs)
	}
	return nil
}
