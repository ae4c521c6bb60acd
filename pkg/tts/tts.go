// Package tts provides a unified interface for text-to-speech providers.
//
// The package supports multiple TTS backends including ElevenLabs (custom
// voice cloning), OpenAI (built-in voices), and Google Cloud TTS. All
// providers implement the Provider interface, enabling seamless switching
// without changing caller code.
//
// Two synthesis paths are offered. Synthesize and Stream take complete
// text. StartStream opens an incremental session: callers push text
// fragments as an LLM emits them and read audio while later fragments are
// still being written, which is what keeps response latency low on live
// calls.
//
// Example usage:
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world", tts.StreamOptions{})
//	// result.Audio contains PCM16 audio bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// Use this for short text where latency to first byte is less critical.
	Synthesize(ctx context.Context, text string, opts StreamOptions) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest latency.
	// Audio chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// StartStream opens an incremental synthesis session. Text is pushed
	// fragment by fragment and audio is read concurrently. Providers
	// without incremental input buffer the text and synthesize on Flush.
	StartStream(ctx context.Context, opts StreamOptions) (StreamSession, error)

	// Capabilities describes provider features.
	Capabilities() Capabilities

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Name returns the provider identifier, e.g. "elevenlabs".
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// StreamOptions carries per-request synthesis overrides. Calls on the
// same provider can use different voices, so the voice travels with the
// request rather than living only in provider configuration. Zero
// values fall back to the configured defaults.
type StreamOptions struct {
	// VoiceID selects the voice for this request. For ElevenLabs this
	// may be a preset name (see ResolveElevenLabsVoice) or a raw voice
	// ID; other providers take their native voice names.
	VoiceID string

	// SampleRate requests a PCM output rate in Hz for providers that
	// support it. Unsupported rates fall back to the provider default.
	SampleRate int
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Streaming   bool `json:"streaming"`   // one-shot streaming output
	Incremental bool `json:"incremental"` // true incremental text input sessions
	VoiceClone  bool `json:"voice_clone"` // custom cloned voices
}

// StreamSession is an incremental synthesis session for one utterance.
//
// The caller pushes text with SendText, calls Flush when the utterance is
// complete, and drains Audio until it is closed. Close aborts synthesis
// and discards any audio not yet read.
type StreamSession interface {
	// SendText queues a text fragment for synthesis. Empty fragments are
	// ignored.
	SendText(text string) error

	// Flush signals that no more text is coming for this utterance.
	Flush() error

	// Audio returns the channel of audio chunks. The channel is closed
	// when synthesis completes, fails, or the session is closed.
	Audio() <-chan []byte

	// Format returns the audio format of session output.
	Format() AudioFormat

	// Err returns the first error the session encountered. Valid after
	// the Audio channel is closed.
	Err() error

	// Close aborts the session and releases resources.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., pcm_16000, mp3_44100_128).
	Encoding Encoding

	// SampleRate in Hz (e.g., 16000, 24000, 44100).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
// These match ElevenLabs output format options.
type Encoding string

const (
	// PCM formats (raw audio, lowest latency)
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16
	EncodingPCM44 Encoding = "pcm_44100" // 44.1kHz mono PCM16

	// Compressed formats
	EncodingMP3  Encoding = "mp3_44100_128" // MP3 128kbps
	EncodingOpus Encoding = "opus"          // Opus codec
	EncodingULaw Encoding = "ulaw_8000"     // μ-law 8kHz (telephony)
)

// VoiceSettings controls voice characteristics for providers that support it.
// These settings affect the expressiveness and consistency of the generated speech.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	// Higher values = closer to original voice sample.
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	// Only supported by ElevenLabs v2 models.
	Style float64

	// SpeakerBoost enhances speaker clarity.
	// Recommended for noisy environments.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	case EncodingULaw:
		return 8000
	default:
		return 16000
	}
}

// EncodingFromSampleRate returns the PCM encoding matching a sample
// rate, or empty when no PCM encoding matches.
func EncodingFromSampleRate(rate int) Encoding {
	switch rate {
	case 16000:
		return EncodingPCM16
	case 22050:
		return EncodingPCM22
	case 24000:
		return EncodingPCM24
	case 44100:
		return EncodingPCM44
	default:
		return ""
	}
}
