package sip

import (
	"errors"
	"time"
)

// Config holds SIP listener settings.
type Config struct {
	// ListenAddr is the SIP UDP bind address, e.g. "0.0.0.0".
	ListenAddr string

	// Port is the SIP listening port (default: 5060).
	Port int

	// PublicIP is the address advertised in SDP answers. Required when
	// the server sits behind NAT; defaults to ListenAddr.
	PublicIP string

	// MaxCallDuration caps a single call (default: 1h). Calls past the
	// cap are ended, never left running.
	MaxCallDuration time.Duration

	// CleanupInterval is how often stale sessions are swept
	// (default: 30s).
	CleanupInterval time.Duration

	// Default session configuration when no OnConfigure hook is set.
	SystemPrompt string
	VoiceID      string
	Language     string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "0.0.0.0",
		Port:            5060,
		MaxCallDuration: time.Hour,
		CleanupInterval: 30 * time.Second,
		SystemPrompt:    "You are a helpful voice agent. Keep answers brief and conversational; this is a phone call.",
		Language:        "en-US",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("sip: listen address required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("sip: port out of range")
	}
	if c.MaxCallDuration <= 0 {
		return errors.New("sip: max call duration must be positive")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("sip: cleanup interval must be positive")
	}
	return nil
}

func (c Config) publicIP() string {
	if c.PublicIP != "" {
		return c.PublicIP
	}
	return c.ListenAddr
}
