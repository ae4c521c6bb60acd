package rtpio

import (
	"math/rand"
)

// DefaultSamplesPerPacket is one 20 ms G.711 frame at 8 kHz.
const DefaultSamplesPerPacket = 160

// SessionConfig parameterizes an outbound RTP stream.
type SessionConfig struct {
	// PayloadType selects the codec: PayloadTypePCMU or PayloadTypePCMA.
	PayloadType uint8

	// SamplesPerPacket is the frame size in samples. For G.711 one sample
	// is one payload byte. Defaults to DefaultSamplesPerPacket.
	SamplesPerPacket int
}

// Session owns the send-side RTP state for one call leg: a random SSRC,
// random initial sequence number and timestamp, and the marker flag that
// tags the first packet of each talk-spurt. Not safe for concurrent use;
// each call's egress loop owns its session.
type Session struct {
	cfg  SessionConfig
	ssrc uint32
	seq  uint16
	ts   uint32

	// markerPending is true before the first packet of the call and after
	// each ResumeTalkspurt.
	markerPending bool
}

// NewSession creates a session with randomized SSRC, sequence number, and
// timestamp, per RFC 3550.
func NewSession(cfg SessionConfig) *Session {
	if cfg.SamplesPerPacket <= 0 {
		cfg.SamplesPerPacket = DefaultSamplesPerPacket
	}
	return &Session{
		cfg:           cfg,
		ssrc:          rand.Uint32(),
		seq:           uint16(rand.Intn(1 << 16)),
		ts:            rand.Uint32(),
		markerPending: true,
	}
}

// SSRC returns the stream's synchronization source identifier.
func (s *Session) SSRC() uint32 {
	return s.ssrc
}

// PayloadType returns the configured payload type.
func (s *Session) PayloadType() uint8 {
	return s.cfg.PayloadType
}

// SamplesPerPacket returns the configured frame size.
func (s *Session) SamplesPerPacket() int {
	return s.cfg.SamplesPerPacket
}

// ResumeTalkspurt arms the marker bit for the next packet, signalling the
// first packet after a silence gap.
func (s *Session) ResumeTalkspurt() {
	s.markerPending = true
}

// Packetize splits an encoded payload into ceil(len/SamplesPerPacket)
// marshaled RTP packets. The final short frame is zero-padded to the full
// frame size so receivers always see fixed-duration packets. The sequence
// number advances by one per packet mod 2^16 and the timestamp by
// SamplesPerPacket mod 2^32.
func (s *Session) Packetize(payload []byte) ([][]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	spp := s.cfg.SamplesPerPacket
	n := (len(payload) + spp - 1) / spp
	packets := make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		frame := make([]byte, spp)
		copy(frame, payload[i*spp:min(len(payload), (i+1)*spp)])

		marker := s.markerPending
		s.markerPending = false

		buf, err := Encode(frame, s.seq, s.ts, s.ssrc, s.cfg.PayloadType, marker)
		if err != nil {
			return nil, err
		}
		packets = append(packets, buf)

		s.seq++
		s.ts += uint32(spp)
	}
	return packets, nil
}
