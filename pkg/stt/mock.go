package stt

import (
	"context"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// Mock is a mock STT provider for testing.
// It records calls and returns configurable responses.
type Mock struct {
	mu sync.Mutex

	// StreamTranscribeFunc overrides the default stream behavior.
	StreamTranscribeFunc func(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error)

	// HealthFunc overrides health check behavior.
	HealthFunc func(ctx context.Context) error

	// CloseFunc overrides close behavior.
	CloseFunc func() error

	// Calls records all stream invocations.
	Calls []TranscribeOptions
}

// NewMock creates a mock whose streams drain audio and emit nothing until
// the audio channel closes.
func NewMock() *Mock {
	return &Mock{}
}

// NewMockScripted creates a mock that plays one scripted caller turn per
// entry: an interim chunk, a final chunk, then a turn boundary. Each turn
// starts after the next audio chunk arrives, so scripted turns pace
// themselves against the caller's audio.
func NewMockScripted(turns ...string) *Mock {
	m := &Mock{}
	m.StreamTranscribeFunc = func(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error) {
		events := make(chan Event, 16)
		go func() {
			defer close(events)
			remaining := turns
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-audio:
					if !ok {
						return
					}
					if len(remaining) == 0 {
						continue
					}
					turn := remaining[0]
					remaining = remaining[1:]
					for _, ev := range scriptTurn(turn, opts.InterimResults) {
						select {
						case events <- ev:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}()
		return events, nil
	}
	return m
}

func scriptTurn(text string, interim bool) []Event {
	var out []Event
	if interim && len(text) > 1 {
		half := text[:len(text)/2]
		out = append(out, Event{Transcript: &TranscriptChunk{Text: half, Confidence: 0.5}})
	}
	out = append(out,
		Event{Transcript: &TranscriptChunk{Text: text, IsFinal: true, Confidence: 0.97}},
		Event{Transcript: &TranscriptChunk{IsFinal: true}},
	)
	return out
}

// StreamTranscribe implements Provider.
func (m *Mock) StreamTranscribe(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, opts)
	fn := m.StreamTranscribeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio, opts)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-audio:
				if !ok {
					return
				}
			}
		}
	}()
	return events, nil
}

// Capabilities implements Provider.
func (m *Mock) Capabilities() Capabilities {
	return Capabilities{Streaming: true, InterimResults: true, BargeIn: true}
}

// Health implements Provider.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Name implements Provider.
func (m *Mock) Name() string {
	return "mock"
}

// Close implements Provider.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// CallCount returns the number of stream invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// WithError creates a mock whose streams fail immediately with err.
func WithError(err error) *Mock {
	return &Mock{
		StreamTranscribeFunc: func(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error { return err },
	}
}

// WithLatency wraps a provider, delaying event delivery by delay.
func WithLatency(p Provider, delay time.Duration) Provider {
	return &latencyProvider{inner: p, delay: delay}
}

type latencyProvider struct {
	inner Provider
	delay time.Duration
}

func (l *latencyProvider) StreamTranscribe(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error) {
	inner, err := l.inner.StreamTranscribe(ctx, audio, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for ev := range inner {
			select {
			case <-time.After(l.delay):
			case <-ctx.Done():
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (l *latencyProvider) Capabilities() Capabilities { return l.inner.Capabilities() }

func (l *latencyProvider) Health(ctx context.Context) error { return l.inner.Health(ctx) }

func (l *latencyProvider) Name() string { return l.inner.Name() }

func (l *latencyProvider) Close() error { return l.inner.Close() }

// Ensure mocks implement Provider.
var (
	_ Provider = (*Mock)(nil)
	_ Provider = (*latencyProvider)(nil)
)
