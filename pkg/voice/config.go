package voice

import (
	"errors"
	"time"
)

// Config holds the tunable parameters of the conversation pipeline.
// Provider credentials live with the providers; this is loop behavior
// only.
type Config struct {
	// PollInterval bounds queue waits in the audio pump and therefore
	// how quickly a barge-in takes effect (default: 100ms).
	PollInterval time.Duration

	// MaxConsecutiveErrors is how many provider failures in a row end
	// the call with a goodbye instead of another retry (default: 3).
	MaxConsecutiveErrors int

	// SampleRate of pipeline audio fed to recognition (default: 16000).
	SampleRate int

	// InterimResults requests unstable partial transcripts. They feed
	// the monitor view; turn handling only uses finals.
	InterimResults bool

	// ContextHints bias recognition toward campaign phrases.
	ContextHints []string

	// LLM settings
	LLMTemperature float64 // response randomness 0.0-2.0 (default: 0.8)
	LLMMaxTokens   int     // response cap; calls want short answers (default: 256)

	// OutputChunkDuration is the egress framing for synthesized audio
	// (default: 80ms).
	OutputChunkDuration time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:         100 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		SampleRate:           16000,
		InterimResults:       true,
		LLMTemperature:       0.8,
		LLMMaxTokens:         256,
		OutputChunkDuration:  80 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("voice: poll interval must be positive")
	}
	if c.MaxConsecutiveErrors < 1 {
		return errors.New("voice: max consecutive errors must be at least 1")
	}
	if c.SampleRate <= 0 {
		return errors.New("voice: sample rate must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return errors.New("voice: LLM temperature must be between 0 and 2")
	}
	if c.LLMMaxTokens < 1 {
		return errors.New("voice: LLM max tokens must be at least 1")
	}
	if c.OutputChunkDuration <= 0 {
		return errors.New("voice: output chunk duration must be positive")
	}
	return nil
}
