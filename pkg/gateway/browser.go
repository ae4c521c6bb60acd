package gateway

import (
	"sync"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// AudioWriter is the opaque outbound handle for a browser call. The
// WebRTC transport implements it; the pipeline never sees past it.
type AudioWriter interface {
	// WriteAudio transmits one chunk of raw PCM16 at the pipeline rate.
	WriteAudio(pcm []byte) error
}

// Browser is the browser-call variant. Framing is identical to the
// WebSocket variant (raw PCM16 at the pipeline rate, no codec work);
// only the transport handle type differs, and that stays opaque to the
// pipeline.
type Browser struct {
	*sessions

	writersMu sync.Mutex
	writers   map[string]AudioWriter
}

// NewBrowser creates an uninitialized Browser gateway.
func NewBrowser() *Browser {
	return &Browser{
		sessions: newSessions("gateway.browser"),
		writers:  make(map[string]AudioWriter),
	}
}

// Name implements Gateway.
func (g *Browser) Name() string { return "browser" }

// Initialize implements Gateway.
func (g *Browser) Initialize(cfg Config) error { return g.init(cfg) }

// OnCallStarted implements Gateway.
func (g *Browser) OnCallStarted(callID string, meta Metadata) error {
	_, err := g.start(callID, meta)
	return err
}

// OnAudioReceived implements Gateway.
func (g *Browser) OnAudioReceived(callID string, payload []byte) error {
	c := g.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	return g.ingest(c, payload)
}

// SendAudio implements Gateway.
func (g *Browser) SendAudio(callID string, chunk audioio.AudioChunk) error {
	return g.send(callID, chunk)
}

// AudioQueue implements Gateway.
func (g *Browser) AudioQueue(callID string) *audioio.Queue { return g.audioQueue(callID) }

// OutputQueue implements Gateway.
func (g *Browser) OutputQueue(callID string) *audioio.Queue { return g.outputQueue(callID) }

// FlushOutput implements Gateway.
func (g *Browser) FlushOutput(callID string) int { return g.flushOutput(callID) }

// Recording implements Gateway.
func (g *Browser) Recording(callID string) *audioio.RecordingBuffer { return g.recording(callID) }

// ClearRecording implements Gateway.
func (g *Browser) ClearRecording(callID string) error { return g.clearRecording(callID) }

// Stats implements Gateway.
func (g *Browser) Stats(callID string) (Stats, bool) { return g.callStats(callID) }

// ActiveCalls implements Gateway.
func (g *Browser) ActiveCalls() []string { return g.activeCalls() }

// OnCallEnded implements Gateway.
func (g *Browser) OnCallEnded(callID string, reason string) error {
	return g.end(callID, reason)
}

// Cleanup implements Gateway.
func (g *Browser) Cleanup() error {
	g.removeAll()
	g.writersMu.Lock()
	g.writers = make(map[string]AudioWriter)
	g.writersMu.Unlock()
	return nil
}

// Attach binds the outbound transport handle and starts the egress pump.
func (g *Browser) Attach(callID string, w AudioWriter) error {
	c := g.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	g.writersMu.Lock()
	g.writers[callID] = w
	g.writersMu.Unlock()
	go g.egressPump(callID, c, w)
	return nil
}

// Detach drops the transport handle; the egress pump stops on its next
// write attempt or when the call ends.
func (g *Browser) Detach(callID string) {
	g.writersMu.Lock()
	delete(g.writers, callID)
	g.writersMu.Unlock()
}

func (g *Browser) egressPump(callID string, c *callState, w AudioWriter) {
	for {
		chunk, ok := c.output.PopWait(egressPollInterval)
		if !ok {
			select {
			case <-c.done:
				if c.output.Len() == 0 {
					return
				}
			default:
			}
			continue
		}
		if err := w.WriteAudio(chunk.Bytes()); err != nil {
			g.log.Debug("browser egress write failed", "call_id", callID, "error", err)
			return
		}
	}
}

var _ Gateway = (*Browser)(nil)
