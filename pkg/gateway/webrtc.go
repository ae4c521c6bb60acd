package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

// opusFrameSamples is one 20 ms Opus frame at the 16 kHz pipeline rate.
const opusFrameSamples = 320

// WebRTCTransport connects one browser tab to the Browser gateway. The
// remote Opus track is decoded to PCM16 at the pipeline rate and fed to
// the gateway's ingest path; outbound pipeline audio is Opus-encoded onto
// a local track. The gateway itself never sees any of this; it only gets
// PCM in and an AudioWriter out.
type WebRTCTransport struct {
	gateway *Browser
	callID  string

	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticSample

	dec *opus.Decoder

	encMu   sync.Mutex
	enc     *opus.Encoder
	pending []int16 // outbound samples not yet filling a full frame
	encBuf  []byte

	onClosed func(reason string)
	closed   sync.Once
}

// NewWebRTCTransport creates the peer connection and local audio track for
// one browser call. The call must already be started on the gateway.
// onClosed fires once when the peer connection dies, however that happens.
func NewWebRTCTransport(g *Browser, callID string, onClosed func(reason string)) (*WebRTCTransport, error) {
	cfg := g.config()

	dec, err := opus.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("gateway: opus decoder: %w", err)
	}
	enc, err := opus.NewEncoder(cfg.SampleRate, cfg.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("gateway: opus encoder: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("gateway: peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "crosstalk",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("gateway: local track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, fmt.Errorf("gateway: add track: %w", err)
	}

	t := &WebRTCTransport{
		gateway:  g,
		callID:   callID,
		pc:       pc,
		track:    track,
		dec:      dec,
		enc:      enc,
		encBuf:   make([]byte, 1500),
		onClosed: onClosed,
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			go t.readTrack(remote)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			t.close(state.String())
		}
	})

	if err := g.Attach(callID, t); err != nil {
		pc.Close()
		return nil, err
	}
	return t, nil
}

// HandleOffer applies the browser's SDP offer and returns the complete
// answer after ICE gathering finishes, so no trickle signalling channel is
// needed.
func (t *WebRTCTransport) HandleOffer(offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("gateway: set remote description: %w", err)
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("gateway: create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("gateway: set local description: %w", err)
	}
	<-gathered

	return t.pc.LocalDescription().SDP, nil
}

// readTrack decodes the remote Opus stream into the gateway's ingest path.
// One Opus packet is typically one 20 ms frame, which lands inside the
// validator's duration window as-is.
func (t *WebRTCTransport) readTrack(remote *webrtc.TrackRemote) {
	cfg := t.gateway.config()
	pcm := make([]int16, cfg.SampleRate/1000*120*cfg.Channels) // up to 120 ms per packet

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := t.dec.Decode(pkt.Payload, pcm)
		if err != nil {
			t.gateway.log.Debug("opus decode failed", "call_id", t.callID, "error", err)
			continue
		}
		t.gateway.OnAudioReceived(t.callID, audioio.SamplesToBytes(pcm[:n*cfg.Channels]))
	}
}

// WriteAudio implements AudioWriter: outbound PCM is chopped into full
// Opus frames, with the remainder carried to the next call.
func (t *WebRTCTransport) WriteAudio(pcm []byte) error {
	t.encMu.Lock()
	defer t.encMu.Unlock()

	t.pending = append(t.pending, audioio.BytesToSamples(pcm)...)
	for len(t.pending) >= opusFrameSamples {
		frame := t.pending[:opusFrameSamples]
		t.pending = t.pending[opusFrameSamples:]

		n, err := t.enc.Encode(frame, t.encBuf)
		if err != nil {
			return fmt.Errorf("gateway: opus encode: %w", err)
		}
		data := make([]byte, n)
		copy(data, t.encBuf[:n])
		if err := t.track.WriteSample(media.Sample{Data: data, Duration: 20 * time.Millisecond}); err != nil {
			return fmt.Errorf("gateway: write sample: %w", err)
		}
	}
	return nil
}

// Close tears down the peer connection.
func (t *WebRTCTransport) Close() error {
	t.close("local close")
	return nil
}

func (t *WebRTCTransport) close(reason string) {
	t.closed.Do(func() {
		t.gateway.Detach(t.callID)
		t.pc.Close()
		if t.onClosed != nil {
			t.onClosed(reason)
		}
	})
}

var _ AudioWriter = (*WebRTCTransport)(nil)
