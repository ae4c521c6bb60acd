package gateway

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// egressPollInterval bounds how long an egress pump waits on an empty
// output queue before rechecking whether the call has ended.
const egressPollInterval = 100 * time.Millisecond

// wsConn serializes writes to one WebSocket connection. The egress pump
// and the control read loop both write to it.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) sendBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsConn) sendJSON(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocket is the VoIP trunk variant: one WebSocket connection per call,
// raw PCM16 frames at the pipeline rate in both directions, with a JSON
// control envelope for call lifecycle. No codec conversion happens here.
type WebSocket struct {
	*sessions

	connsMu sync.Mutex
	conns   map[string]*wsConn

	cbMu    sync.RWMutex
	onStart func(callID string, start CallStartData)
	onEnd   func(callID, reason string)
}

// NewWebSocket creates an uninitialized WebSocket gateway.
func NewWebSocket() *WebSocket {
	return &WebSocket{
		sessions: newSessions("gateway.websocket"),
		conns:    make(map[string]*wsConn),
	}
}

// Name implements Gateway.
func (g *WebSocket) Name() string { return "websocket" }

// Initialize implements Gateway.
func (g *WebSocket) Initialize(cfg Config) error { return g.init(cfg) }

// OnStart sets the callback invoked when a trunk opens a call. The
// callback launches the call's pipeline.
func (g *WebSocket) OnStart(fn func(callID string, start CallStartData)) {
	g.cbMu.Lock()
	g.onStart = fn
	g.cbMu.Unlock()
}

// OnEnd sets the callback invoked when a trunk ends a call.
func (g *WebSocket) OnEnd(fn func(callID, reason string)) {
	g.cbMu.Lock()
	g.onEnd = fn
	g.cbMu.Unlock()
}

// OnCallStarted implements Gateway.
func (g *WebSocket) OnCallStarted(callID string, meta Metadata) error {
	_, err := g.start(callID, meta)
	return err
}

// OnAudioReceived implements Gateway. The payload is raw PCM16 at the
// configured pipeline rate; it is validated, recorded, and queued as-is.
func (g *WebSocket) OnAudioReceived(callID string, payload []byte) error {
	c := g.get(callID)
	if c == nil {
		return ErrCallNotFound
	}
	return g.ingest(c, payload)
}

// SendAudio implements Gateway.
func (g *WebSocket) SendAudio(callID string, chunk audioio.AudioChunk) error {
	return g.send(callID, chunk)
}

// AudioQueue implements Gateway.
func (g *WebSocket) AudioQueue(callID string) *audioio.Queue { return g.audioQueue(callID) }

// OutputQueue implements Gateway.
func (g *WebSocket) OutputQueue(callID string) *audioio.Queue { return g.outputQueue(callID) }

// FlushOutput implements Gateway.
func (g *WebSocket) FlushOutput(callID string) int { return g.flushOutput(callID) }

// Recording implements Gateway.
func (g *WebSocket) Recording(callID string) *audioio.RecordingBuffer { return g.recording(callID) }

// ClearRecording implements Gateway.
func (g *WebSocket) ClearRecording(callID string) error { return g.clearRecording(callID) }

// Stats implements Gateway.
func (g *WebSocket) Stats(callID string) (Stats, bool) { return g.callStats(callID) }

// ActiveCalls implements Gateway.
func (g *WebSocket) ActiveCalls() []string { return g.activeCalls() }

// OnCallEnded implements Gateway.
func (g *WebSocket) OnCallEnded(callID string, reason string) error {
	return g.end(callID, reason)
}

// Cleanup implements Gateway.
func (g *WebSocket) Cleanup() error {
	g.removeAll()
	g.connsMu.Lock()
	for id, wc := range g.conns {
		wc.conn.Close()
		delete(g.conns, id)
	}
	g.connsMu.Unlock()
	return nil
}

// ServeConn runs the read loop for one trunk connection until it closes.
// The connection carries exactly one call: a call.start envelope binds it,
// binary frames feed the call's ingest path, and call.end (or the socket
// closing) ends the call.
func (g *WebSocket) ServeConn(c *websocket.Conn) {
	wc := &wsConn{conn: c}
	var callID string

	defer func() {
		if callID != "" {
			g.detach(callID)
			if st, ok := g.callStats(callID); ok && !st.Ended {
				g.endFromTransport(callID, "connection closed")
			}
		}
	}()

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		if msgType == websocket.BinaryMessage {
			if callID == "" {
				continue // audio before call.start
			}
			g.OnAudioReceived(callID, data)
			continue
		}

		msg, err := ParseMessage(data)
		if err != nil {
			g.log.Warn("bad control message", "error", err)
			continue
		}

		switch msg.Type {
		case TypeCallStart:
			var start CallStartData
			if err := msg.ParseData(&start); err != nil {
				g.log.Warn("bad call.start payload", "error", err)
				continue
			}
			if err := g.OnCallStarted(msg.CallID, start.Metadata()); err != nil {
				g.log.Warn("call start rejected", "call_id", msg.CallID, "error", err)
				continue
			}
			callID = msg.CallID
			g.attach(callID, wc)
			g.cbMu.RLock()
			fn := g.onStart
			g.cbMu.RUnlock()
			if fn != nil {
				fn(callID, start)
			}

		case TypeCallAudio:
			if callID == "" {
				continue
			}
			var audio CallAudioData
			if err := msg.ParseData(&audio); err != nil {
				continue
			}
			pcm, err := audio.Decode()
			if err != nil {
				g.log.Warn("bad audio payload", "call_id", callID, "error", err)
				continue
			}
			g.OnAudioReceived(callID, pcm)

		case TypeCallEnd:
			if callID == "" {
				continue
			}
			var end CallEndData
			msg.ParseData(&end)
			reason := end.Reason
			if reason == "" {
				reason = "trunk hangup"
			}
			g.endFromTransport(callID, reason)

		case TypePing:
			if pong, err := NewPongMessage(msg.CallID, msg.Timestamp); err == nil {
				wc.sendJSON(pong)
			}
		}
	}
}

// attach binds a connection to a call and starts its egress pump.
func (g *WebSocket) attach(callID string, wc *wsConn) {
	g.connsMu.Lock()
	g.conns[callID] = wc
	g.connsMu.Unlock()
	go g.egressPump(callID, wc)
}

func (g *WebSocket) detach(callID string) {
	g.connsMu.Lock()
	delete(g.conns, callID)
	g.connsMu.Unlock()
}

func (g *WebSocket) endFromTransport(callID, reason string) {
	g.end(callID, reason)
	g.cbMu.RLock()
	fn := g.onEnd
	g.cbMu.RUnlock()
	if fn != nil {
		fn(callID, reason)
	}
}

// egressPump drains the call's output queue onto the wire as binary PCM16
// frames. It exits when the call ends and the queue is drained, or on the
// first write error.
func (g *WebSocket) egressPump(callID string, wc *wsConn) {
	c := g.get(callID)
	if c == nil {
		return
	}
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
		if err := wc.sendBinary(chunk.Bytes()); err != nil {
			g.log.Debug("egress write failed", "call_id", callID, "error", err)
			return
		}
	}
}

var _ Gateway = (*WebSocket)(nil)
