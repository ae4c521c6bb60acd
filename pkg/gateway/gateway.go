// Package gateway bridges call-leg transports to the voice pipeline.
//
// A Gateway owns the per-call media state: bounded input and output audio
// queues, the recording buffer, and ingest statistics. Three variants cover
// the supported transports: WebSocket VoIP trunks (raw PCM16 frames), SIP
// trunks carrying G.711 over RTP/UDP, and browser calls. All variants
// present the same interface to the pipeline, which never knows which
// transport a call arrived on.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// Codec identifiers for the RTP variant (RFC 3551 static assignments).
const (
	CodecPCMU = "PCMU"
	CodecPCMA = "PCMA"
)

// Errors shared by all gateway variants.
var (
	ErrCallNotFound  = errors.New("gateway: call not found")
	ErrCallExists    = errors.New("gateway: call already started")
	ErrNotAttached   = errors.New("gateway: no transport attached for call")
	ErrNotInitialized = errors.New("gateway: not initialized")
)

// Config is the scalar option surface shared by all variants.
type Config struct {
	// SampleRate of audio on the pipeline side. Default 16000.
	SampleRate int

	// Channels on the pipeline side. Default 1.
	Channels int

	// BitDepth on the pipeline side. Default 16.
	BitDepth int

	// MaxQueueSize bounds the per-call input and output queues. Default 100.
	MaxQueueSize int

	// Codec selects the G.711 variant for RTP calls: CodecPCMU or
	// CodecPCMA. Ignored by the PCM transports. Default CodecPCMU.
	Codec string
}

// DefaultConfig returns the documented defaults: 16 kHz mono PCM16,
// 100-slot queues, PCMU.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		Channels:     1,
		BitDepth:     16,
		MaxQueueSize: audioio.DefaultQueueSize,
		Codec:        CodecPCMU,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.BitDepth <= 0 {
		c.BitDepth = d.BitDepth
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.Codec == "" {
		c.Codec = d.Codec
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Format().Check(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if c.Codec != CodecPCMU && c.Codec != CodecPCMA {
		return fmt.Errorf("gateway: unsupported codec %q", c.Codec)
	}
	return nil
}

// Format returns the pipeline-side audio format.
func (c Config) Format() audioio.Format {
	return audioio.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.BitDepth}
}

// Metadata carries the call context handed over by the signalling layer.
type Metadata struct {
	CampaignID      string `json:"campaign_id,omitempty"`
	LeadID          string `json:"lead_id,omitempty"`
	ProviderCallRef string `json:"provider_call_ref,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
}

// Stats are per-call ingest counters. Per-chunk failures surface here, not
// as errors: a dropped chunk must never take the call down.
type Stats struct {
	TotalChunks      int           `json:"total_chunks"`
	TotalBytes       int           `json:"total_bytes"`
	TotalDuration    time.Duration `json:"total_duration_ms"`
	ValidationErrors int           `json:"validation_errors"`
	BufferOverflows  int           `json:"buffer_overflows"`
	Ended            bool          `json:"ended"`
	EndReason        string        `json:"end_reason,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
}

// Gateway is the uniform media interface all transport variants implement.
//
// OnCallStarted allocates the call's queues, recording buffer, and stats.
// OnAudioReceived validates inbound audio, records it, and queues it for
// the pipeline; invalid chunks are counted and discarded so corrupt audio
// never reaches speech recognition. OnCallEnded marks the call ended but
// retains queues so in-flight pipeline work can drain; Cleanup releases
// everything.
type Gateway interface {
	// Initialize applies configuration. Must be called before any call.
	Initialize(cfg Config) error

	// OnCallStarted allocates per-call state for a new call.
	OnCallStarted(callID string, meta Metadata) error

	// OnAudioReceived ingests one raw transport payload for the call.
	OnAudioReceived(callID string, payload []byte) error

	// SendAudio queues one synthesized chunk for transmission to the caller.
	SendAudio(callID string, chunk audioio.AudioChunk) error

	// AudioQueue returns the call's input queue, or nil if unknown.
	AudioQueue(callID string) *audioio.Queue

	// OutputQueue returns the call's output queue, or nil if unknown.
	OutputQueue(callID string) *audioio.Queue

	// FlushOutput discards queued but unsent output audio, returning the
	// number of chunks dropped. Used on barge-in.
	FlushOutput(callID string) int

	// Recording returns the call's recording buffer, or nil if unknown.
	Recording(callID string) *audioio.RecordingBuffer

	// ClearRecording drops the call's recorded audio after persistence.
	ClearRecording(callID string) error

	// Stats returns the call's ingest counters.
	Stats(callID string) (Stats, bool)

	// ActiveCalls returns the IDs of every call with live state, ended
	// calls awaiting Cleanup included.
	ActiveCalls() []string

	// OnCallEnded marks the call ended. Queues survive until Cleanup.
	OnCallEnded(callID string, reason string) error

	// Cleanup terminates every active call and releases all state.
	Cleanup() error

	// Name identifies the variant, e.g. "websocket".
	Name() string
}
