package sip

import (
	"fmt"
	"time"

	sdp "github.com/pion/sdp/v3"

	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
)

// OfferCodecs is what the caller's SDP offer supports for audio.
type OfferCodecs struct {
	PCMU bool
	PCMA bool
}

// Supports reports whether the offer covers the given gateway codec.
func (o OfferCodecs) Supports(codec string) bool {
	switch codec {
	case gateway.CodecPCMU:
		return o.PCMU
	case gateway.CodecPCMA:
		return o.PCMA
	default:
		return false
	}
}

// ParseOffer inspects an SDP offer for the G.711 variants we can
// bridge. Unparseable offers come back empty, not as an error: the
// caller answers 488 either way.
func ParseOffer(offer string) OfferCodecs {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(offer)); err != nil {
		return OfferCodecs{}
	}

	var codecs OfferCodecs
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, format := range md.MediaName.Formats {
			var pt uint8
			if _, err := fmt.Sscanf(format, "%d", &pt); err != nil {
				continue
			}
			info, err := sd.GetCodecForPayloadType(pt)
			if err != nil {
				continue
			}
			if info.Name == "PCMU" && info.ClockRate == 8000 {
				codecs.PCMU = true
			}
			if info.Name == "PCMA" && info.ClockRate == 8000 {
				codecs.PCMA = true
			}
		}
	}
	return codecs
}

// BuildAnswer renders the SDP answer for one accepted call: a single
// audio stream at rtpPort carrying the selected G.711 codec.
func BuildAnswer(localIP string, rtpPort int, codec string) (string, error) {
	sessionID := uint64(time.Now().Unix())

	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localIP,
		},
		SessionName: "crosstalk",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: localIP},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "audio",
			Port:   sdp.RangedPort{Value: rtpPort},
			Protos: []string{"RTP", "AVP"},
		},
		Attributes: []sdp.Attribute{{Key: "sendrecv"}},
	}

	switch codec {
	case gateway.CodecPCMA:
		media = media.WithCodec(8, "PCMA", 8000, 1, "")
		media.MediaName.Formats = []string{"8"}
	case gateway.CodecPCMU:
		media = media.WithCodec(0, "PCMU", 8000, 1, "")
		media.MediaName.Formats = []string{"0"}
	default:
		return "", fmt.Errorf("sip: unsupported codec %q", codec)
	}

	sd.MediaDescriptions = []*sdp.MediaDescription{media}
	out, err := sd.Marshal()
	if err != nil {
		return "", fmt.Errorf("sip: marshal answer: %w", err)
	}
	return string(out), nil
}
