// Package stt defines the speech-to-text provider abstraction used by the
// voice pipeline, a Deepgram streaming implementation, and a mock for
// tests.
//
// Providers consume a live audio stream and emit transcript chunks as
// recognition progresses. The end of a caller turn is signalled in-band by
// a zero-length final chunk; caller speech detected while the agent is
// speaking is signalled by a barge-in event on the same stream.
package stt

import (
	"context"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// TranscriptChunk is one incremental recognition result.
type TranscriptChunk struct {
	// Text is the recognized text. Empty on a turn-boundary chunk.
	Text string

	// IsFinal marks the chunk as stable: it will not be revised.
	IsFinal bool

	// Confidence is the provider's score in [0, 1], when available.
	Confidence float64
}

// TurnBoundary reports whether this chunk marks the end of a caller turn.
func (c TranscriptChunk) TurnBoundary() bool {
	return c.IsFinal && c.Text == ""
}

// Event is one item on a transcription stream.
type Event struct {
	// Transcript is set for recognition results.
	Transcript *TranscriptChunk

	// BargeIn is true when the provider detected the caller starting to
	// speak. The pipeline uses it to interrupt agent playback.
	BargeIn bool
}

// TranscribeOptions configures one streaming transcription.
type TranscribeOptions struct {
	// Language is a BCP-47 tag, e.g. "en-US".
	Language string

	// SampleRate of the incoming PCM16 audio. Defaults to 16000.
	SampleRate int

	// Context biases recognition toward domain phrases.
	Context []string

	// InterimResults requests unstable partial chunks between finals.
	InterimResults bool
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Streaming      bool `json:"streaming"`
	InterimResults bool `json:"interim_results"`
	BargeIn        bool `json:"barge_in"`
}

// Provider is a speech-to-text backend.
type Provider interface {
	// StreamTranscribe consumes audio chunks until ctx is canceled or the
	// audio channel closes, emitting events as recognition progresses.
	// The returned channel is closed when transcription ends.
	StreamTranscribe(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error)

	// Capabilities describes provider features.
	Capabilities() Capabilities

	// Health verifies the provider is reachable and authorized.
	Health(ctx context.Context) error

	// Name returns the provider identifier, e.g. "deepgram".
	Name() string

	// Close releases provider resources.
	Close() error
}
