package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/codec"
	"github.com/crosstalk-ai/crosstalk/pkg/rtpio"
)

// telephonyRate is the G.711 wire rate.
const telephonyRate = 8000

// rtpFrameInterval paces outbound packets at the standard 20 ms cadence.
const rtpFrameInterval = 20 * time.Millisecond

// rtpCall holds the codec and socket state for one RTP call leg. The
// inbound resampler is owned by the UDP read loop and the outbound
// resampler by the egress pump; neither is shared.
type rtpCall struct {
	in      *codec.Resampler // 8 kHz wire -> pipeline rate
	out     *codec.Resampler // pipeline rate -> 8 kHz wire
	session *rtpio.Session

	mu     sync.Mutex
	conn   *net.UDPConn
	remote *net.UDPAddr
	stop   chan struct{}
}

func (rc *rtpCall) transport() (*net.UDPConn, *net.UDPAddr) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.conn, rc.remote
}

// RTP is the SIP trunk variant: G.711 inside RTP over UDP at 8 kHz on the
// wire, PCM16 at the pipeline rate on the inside. Inbound packets are
// decoded and upsampled before validation; outbound chunks are downsampled,
// companded, packetized, and paced at 20 ms.
type RTP struct {
	*sessions

	rtpMu sync.RWMutex
	rtp   map[string]*rtpCall
}

// NewRTP creates an uninitialized RTP gateway.
func NewRTP() *RTP {
	return &RTP{
		sessions: newSessions("gateway.rtp"),
		rtp:      make(map[string]*rtpCall),
	}
}

// Name implements Gateway.
func (g *RTP) Name() string { return "rtp" }

// Initialize implements Gateway.
func (g *RTP) Initialize(cfg Config) error { return g.init(cfg) }

// PayloadType returns the RTP payload type for the configured codec.
func (g *RTP) PayloadType() uint8 {
	if g.config().Codec == CodecPCMA {
		return rtpio.PayloadTypePCMA
	}
	return rtpio.PayloadTypePCMU
}

// OnCallStarted implements Gateway.
func (g *RTP) OnCallStarted(callID string, meta Metadata) error {
	if _, err := g.start(callID, meta); err != nil {
		return err
	}
	cfg := g.config()
	in, err := codec.NewResampler(telephonyRate, cfg.SampleRate)
	if err != nil {
		return err
	}
	out, err := codec.NewResampler(cfg.SampleRate, telephonyRate)
	if err != nil {
		return err
	}
	rc := &rtpCall{
		in:  in,
		out: out,
		session: rtpio.NewSession(rtpio.SessionConfig{
			PayloadType: g.PayloadType(),
		}),
		stop: make(chan struct{}),
	}
	g.rtpMu.Lock()
	g.rtp[callID] = rc
	g.rtpMu.Unlock()
	return nil
}

func (g *RTP) rtpState(callID string) *rtpCall {
	g.rtpMu.RLock()
	defer g.rtpMu.RUnlock()
	return g.rtp[callID]
}

// OnAudioReceived implements Gateway. The payload is one raw RTP packet:
// decode the header, expand the G.711 payload, upsample to the pipeline
// rate, then run the shared ingest path. Undecodable packets are dropped
// and counted, never fatal.
func (g *RTP) OnAudioReceived(callID string, payload []byte) error {
	c := g.get(callID)
	rc := g.rtpState(callID)
	if c == nil || rc == nil {
		return ErrCallNotFound
	}

	pkt, err := rtpio.Decode(payload)
	if err != nil {
		c.mu.Lock()
		c.stats.ValidationErrors++
		c.mu.Unlock()
		return err
	}
	if len(pkt.Payload) == 0 {
		return nil
	}

	var pcm []byte
	switch pkt.PayloadType {
	case rtpio.PayloadTypePCMU:
		pcm = codec.ULawToPCM16(pkt.Payload)
	case rtpio.PayloadTypePCMA:
		pcm = codec.ALawToPCM16(pkt.Payload)
	default:
		c.mu.Lock()
		c.stats.ValidationErrors++
		c.mu.Unlock()
		return nil
	}

	wide := rc.in.Process(audioio.BytesToSamples(pcm))
	return g.ingest(c, audioio.SamplesToBytes(wide))
}

// SendAudio implements Gateway.
func (g *RTP) SendAudio(callID string, chunk audioio.AudioChunk) error {
	return g.send(callID, chunk)
}

// AudioQueue implements Gateway.
func (g *RTP) AudioQueue(callID string) *audioio.Queue { return g.audioQueue(callID) }

// OutputQueue implements Gateway.
func (g *RTP) OutputQueue(callID string) *audioio.Queue { return g.outputQueue(callID) }

// FlushOutput implements Gateway.
func (g *RTP) FlushOutput(callID string) int { return g.flushOutput(callID) }

// Recording implements Gateway.
func (g *RTP) Recording(callID string) *audioio.RecordingBuffer { return g.recording(callID) }

// ClearRecording implements Gateway.
func (g *RTP) ClearRecording(callID string) error { return g.clearRecording(callID) }

// Stats implements Gateway.
func (g *RTP) Stats(callID string) (Stats, bool) { return g.callStats(callID) }

// ActiveCalls implements Gateway.
func (g *RTP) ActiveCalls() []string { return g.activeCalls() }

// OnCallEnded implements Gateway.
func (g *RTP) OnCallEnded(callID string, reason string) error {
	return g.end(callID, reason)
}

// Cleanup implements Gateway.
func (g *RTP) Cleanup() error {
	g.removeAll()
	g.rtpMu.Lock()
	for id, rc := range g.rtp {
		close(rc.stop)
		rc.mu.Lock()
		if rc.conn != nil {
			rc.conn.Close()
		}
		rc.mu.Unlock()
		delete(g.rtp, id)
	}
	g.rtpMu.Unlock()
	return nil
}

// BindTransport attaches a UDP socket to the call and starts the receive
// loop and paced egress pump. The remote address is learned from the first
// inbound packet, so the pump stays silent until the caller's media
// arrives.
func (g *RTP) BindTransport(callID string, conn *net.UDPConn) error {
	rc := g.rtpState(callID)
	if rc == nil {
		return ErrCallNotFound
	}
	rc.mu.Lock()
	rc.conn = conn
	rc.mu.Unlock()

	go g.receiveLoop(callID, rc)
	go g.egressPump(callID, rc)
	return nil
}

// ReleaseTransport stops the per-call RTP loops and closes the socket.
// Queues, recording, and stats survive until Cleanup so the pipeline
// can finish draining.
func (g *RTP) ReleaseTransport(callID string) {
	g.rtpMu.Lock()
	rc, ok := g.rtp[callID]
	if ok {
		delete(g.rtp, callID)
	}
	g.rtpMu.Unlock()
	if !ok {
		return
	}
	close(rc.stop)
	rc.mu.Lock()
	if rc.conn != nil {
		rc.conn.Close()
	}
	rc.mu.Unlock()
}

// receiveLoop reads RTP packets from the socket into the ingest path.
func (g *RTP) receiveLoop(callID string, rc *rtpCall) {
	buf := make([]byte, 1500) // MTU-sized
	for {
		select {
		case <-rc.stop:
			return
		default:
		}

		rc.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, remote, err := rc.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			g.log.Debug("rtp read stopped", "call_id", callID, "error", err)
			return
		}
		if n == 0 {
			continue
		}

		rc.mu.Lock()
		if rc.remote == nil {
			rc.remote = remote
			g.log.Info("learned remote rtp address", "call_id", callID, "remote", remote.String())
		}
		rc.mu.Unlock()

		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		g.OnAudioReceived(callID, pkt)
	}
}

// egressPump converts queued pipeline chunks to paced G.711 RTP. One
// ticker interval per 20 ms frame keeps the far end's jitter buffer happy.
func (g *RTP) egressPump(callID string, rc *rtpCall) {
	c := g.get(callID)
	if c == nil {
		return
	}
	cfg := g.config()

	ticker := time.NewTicker(rtpFrameInterval)
	defer ticker.Stop()

	var pending [][]byte
	for {
		select {
		case <-rc.stop:
			return
		case <-ticker.C:
		}

		if len(pending) == 0 {
			chunk, ok := c.output.TryPop()
			if !ok {
				select {
				case <-c.done:
					if c.output.Len() == 0 {
						return
					}
				default:
				}
				// Silence gap: next audio starts a new talk-spurt.
				rc.session.ResumeTalkspurt()
				continue
			}

			narrow := rc.out.Process(chunk.Samples)
			var payload []byte
			var err error
			if cfg.Codec == CodecPCMA {
				payload, err = codec.PCM16ToALaw(audioio.SamplesToBytes(narrow))
			} else {
				payload, err = codec.PCM16ToULaw(audioio.SamplesToBytes(narrow))
			}
			if err != nil {
				g.log.Warn("g711 encode failed", "call_id", callID, "error", err)
				continue
			}
			pending, err = rc.session.Packetize(payload)
			if err != nil {
				g.log.Warn("packetize failed", "call_id", callID, "error", err)
				continue
			}
		}

		if len(pending) == 0 {
			continue
		}
		pkt := pending[0]
		pending = pending[1:]

		conn, remote := rc.transport()
		if conn == nil || remote == nil {
			continue // remote not yet learned; drop to stay real-time
		}
		if _, err := conn.WriteToUDP(pkt, remote); err != nil {
			g.log.Debug("rtp write failed", "call_id", callID, "error", err)
		}
	}
}

var _ Gateway = (*RTP)(nil)
