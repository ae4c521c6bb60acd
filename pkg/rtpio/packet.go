// Package rtpio frames telephony audio as RTP (RFC 3550) on top of
// pion/rtp: stateless packet encode/decode plus a per-call Session that
// owns sequence, timestamp, and talk-spurt marker state.
package rtpio

import (
	"fmt"

	"github.com/pion/rtp"
)

// Static G.711 payload type assignments (RFC 3551).
const (
	PayloadTypePCMU uint8 = 0
	PayloadTypePCMA uint8 = 8
)

// headerSize is the fixed RTP header length before CSRC entries.
const headerSize = 12

// MalformedPacketError reports an undecodable RTP packet. The receive loop
// drops the packet and keeps the stream alive.
type MalformedPacketError struct {
	Size   int
	Reason string
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("rtpio: malformed packet (%d bytes): %s", e.Size, e.Reason)
}

// Encode builds one RTP packet with the given header fields and payload.
func Encode(payload []byte, seq uint16, ts, ssrc uint32, pt uint8, marker bool) ([]byte, error) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpio: marshal: %w", err)
	}
	return buf, nil
}

// Decode parses an RTP packet. Buffers shorter than the fixed header or
// too short for their declared CSRC count fail with *MalformedPacketError.
func Decode(buf []byte) (*rtp.Packet, error) {
	if len(buf) < headerSize {
		return nil, &MalformedPacketError{Size: len(buf), Reason: "shorter than fixed header"}
	}
	if cc := int(buf[0] & 0x0f); len(buf) < headerSize+cc*4 {
		return nil, &MalformedPacketError{
			Size:   len(buf),
			Reason: fmt.Sprintf("declares %d CSRC entries beyond buffer", cc),
		}
	}
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, &MalformedPacketError{Size: len(buf), Reason: err.Error()}
	}
	return pkt, nil
}
