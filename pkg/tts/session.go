package tts

import (
	"context"
	"strings"
	"sync"
)

// bufferedSession adapts whole-utterance synthesis to the StreamSession
// interface for providers without incremental text input. Text fragments
// accumulate until Flush, then a single synthesis call produces the audio.
type bufferedSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	synthesize func(ctx context.Context, text string) ([]byte, error)
	format     AudioFormat
	audio      chan []byte

	mu      sync.Mutex
	pending strings.Builder
	flushed bool
	closed  bool
	err     error
}

func newBufferedSession(ctx context.Context, format AudioFormat, synthesize func(context.Context, string) ([]byte, error)) *bufferedSession {
	sctx, cancel := context.WithCancel(ctx)
	return &bufferedSession{
		ctx:        sctx,
		cancel:     cancel,
		synthesize: synthesize,
		format:     format,
		audio:      make(chan []byte, 4),
	}
}

// SendText accumulates a text fragment for synthesis on Flush.
func (s *bufferedSession) SendText(text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed || s.closed {
		return ErrSessionClosed
	}
	s.pending.WriteString(text)
	return nil
}

// Flush synthesizes the accumulated text in the background. The Audio
// channel closes once the result is delivered.
func (s *bufferedSession) Flush() error {
	s.mu.Lock()
	if s.flushed || s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.flushed = true
	text := s.pending.String()
	s.mu.Unlock()

	go func() {
		defer close(s.audio)

		if strings.TrimSpace(text) == "" {
			return
		}

		data, err := s.synthesize(s.ctx, text)
		if err != nil {
			s.setErr(err)
			return
		}
		if len(data) == 0 {
			return
		}

		select {
		case s.audio <- data:
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
		}
	}()

	return nil
}

// Audio returns the session output channel.
func (s *bufferedSession) Audio() <-chan []byte {
	return s.audio
}

// Format returns the session output format.
func (s *bufferedSession) Format() AudioFormat {
	return s.format
}

// Err returns the first error encountered, if any.
func (s *bufferedSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close aborts the session. Pending synthesis is cancelled.
func (s *bufferedSession) Close() error {
	s.mu.Lock()
	alreadyFlushed := s.flushed
	alreadyClosed := s.closed
	s.closed = true
	s.flushed = true
	s.mu.Unlock()

	if alreadyClosed {
		return nil
	}
	s.cancel()

	// Without a Flush nothing will ever close the channel, so do it here.
	if !alreadyFlushed {
		close(s.audio)
	}
	return nil
}

func (s *bufferedSession) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Verify bufferedSession implements StreamSession at compile time.
var _ StreamSession = (*bufferedSession)(nil)
