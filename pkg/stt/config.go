package stt

import (
	"log/slog"
	"time"
)

// Config holds STT provider configuration.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string

	// Model selects the recognition model.
	Model string

	// Language is the default BCP-47 language tag.
	Language string

	// SampleRate of the audio the provider will receive.
	SampleRate int

	// Endpointing is the trailing-silence window after which the provider
	// declares the utterance finished.
	Endpointing time.Duration

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds connection setup and health checks.
	Timeout time.Duration

	// Logger for provider events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:       "nova-2",
		Language:    "en-US",
		SampleRate:  16000,
		Endpointing: 300 * time.Millisecond,
		Timeout:     10 * time.Second,
		Logger:      slog.Default(),
	}
}

// Option configures a Config.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the default language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithSampleRate sets the inbound audio sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithEndpointing sets the end-of-utterance silence window.
func WithEndpointing(d time.Duration) Option {
	return func(c *Config) { c.Endpointing = d }
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrAPIKeyRequired
	}
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	return nil
}
