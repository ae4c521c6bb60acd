package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// callState is the per-call media state shared by all variants. The input
// queue has one producer (the transport read loop) and one consumer (the
// pipeline); the output queue has one producer (the pipeline) and one
// consumer (the egress pump). The recording buffer is appended to only by
// the ingest path.
type callState struct {
	meta      Metadata
	input     *audioio.Queue
	output    *audioio.Queue
	recording *audioio.RecordingBuffer

	mu    sync.Mutex
	stats Stats

	// done is closed when the transport reports call end, waking any
	// egress pump blocked on the output queue.
	done     chan struct{}
	doneOnce sync.Once
}

func (c *callState) markEnded(reason string) {
	c.mu.Lock()
	c.stats.Ended = true
	c.stats.EndReason = reason
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *callState) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// sessions implements the variant-independent half of the Gateway
// contract: call registration, the validate-record-queue ingest path, and
// lifecycle bookkeeping. Each variant embeds one and layers its transport
// and codec handling on top.
type sessions struct {
	mu     sync.RWMutex
	cfg    Config
	format audioio.Format
	calls  map[string]*callState
	log    *slog.Logger
	ready  bool
}

func newSessions(component string) *sessions {
	return &sessions{
		calls: make(map[string]*callState),
		log:   slog.Default().With("component", component),
	}
}

func (s *sessions) init(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.format = cfg.Format()
	s.ready = true
	return nil
}

func (s *sessions) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *sessions) start(callID string, meta Metadata) (*callState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, ErrNotInitialized
	}
	if _, ok := s.calls[callID]; ok {
		return nil, ErrCallExists
	}
	c := &callState{
		meta:      meta,
		input:     audioio.NewQueue(s.cfg.MaxQueueSize),
		output:    audioio.NewQueue(s.cfg.MaxQueueSize),
		recording: audioio.NewRecordingBuffer(s.format),
		stats:     Stats{StartedAt: time.Now()},
		done:      make(chan struct{}),
	}
	s.calls[callID] = c
	s.log.Info("call started", "call_id", callID, "campaign_id", meta.CampaignID)
	return c, nil
}

func (s *sessions) get(callID string) *callState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[callID]
}

// ingest runs one pipeline-rate PCM chunk through validation, recording,
// and the input queue. Invalid chunks are counted and dropped; a full
// queue evicts its oldest entry and counts the overflow.
func (s *sessions) ingest(c *callState, pcm []byte) error {
	if err := s.format.Validate(pcm); err != nil {
		c.mu.Lock()
		c.stats.ValidationErrors++
		n := c.stats.ValidationErrors
		c.mu.Unlock()
		if n == 1 || n%100 == 0 {
			s.log.Warn("invalid audio chunk", "error", err, "count", n)
		}
		return err
	}

	c.recording.Append(pcm)

	chunk := audioio.AudioChunk{
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Samples:    audioio.BytesToSamples(pcm),
		Timestamp:  time.Now(),
	}
	dropped := c.input.Push(chunk)

	c.mu.Lock()
	c.stats.TotalChunks++
	c.stats.TotalBytes += len(pcm)
	c.stats.TotalDuration += chunk.Duration()
	if dropped {
		c.stats.BufferOverflows++
	}
	c.mu.Unlock()
	return nil
}

func (s *sessions) send(callID string, chunk audioio.AudioChunk) error {
	c := s.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	c.output.Push(chunk)
	return nil
}

func (s *sessions) flushOutput(callID string) int {
	c := s.get(callID)
	if c == nil {
		return 0
	}
	n := len(c.output.Drain())
	if n > 0 {
		s.log.Debug("output flushed", "call_id", callID, "chunks", n)
	}
	return n
}

func (s *sessions) end(callID, reason string) error {
	c := s.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	c.markEnded(reason)
	s.log.Info("call ended", "call_id", callID, "reason", reason)
	return nil
}

func (s *sessions) remove(callID string) *callState {
	s.mu.Lock()
	c := s.calls[callID]
	delete(s.calls, callID)
	s.mu.Unlock()
	if c != nil {
		c.markEnded("cleanup")
	}
	return c
}

func (s *sessions) removeAll() []*callState {
	s.mu.Lock()
	out := make([]*callState, 0, len(s.calls))
	for id, c := range s.calls {
		out = append(out, c)
		delete(s.calls, id)
	}
	s.mu.Unlock()
	for _, c := range out {
		c.markEnded("cleanup")
	}
	return out
}

func (s *sessions) activeCalls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.calls))
	for id := range s.calls {
		ids = append(ids, id)
	}
	return ids
}

// Shared accessor implementations; variants forward to these.

func (s *sessions) audioQueue(callID string) *audioio.Queue {
	if c := s.get(callID); c != nil {
		return c.input
	}
	return nil
}

func (s *sessions) outputQueue(callID string) *audioio.Queue {
	if c := s.get(callID); c != nil {
		return c.output
	}
	return nil
}

func (s *sessions) recording(callID string) *audioio.RecordingBuffer {
	if c := s.get(callID); c != nil {
		return c.recording
	}
	return nil
}

func (s *sessions) clearRecording(callID string) error {
	c := s.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	c.recording.Clear()
	return nil
}

func (s *sessions) callStats(callID string) (Stats, bool) {
	c := s.get(callID)
	if c == nil {
		return Stats{}, false
	}
	return c.snapshot(), true
}
