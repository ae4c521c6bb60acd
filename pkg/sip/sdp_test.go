package sip

import (
	"strings"
	"testing"

	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
)

const offerBoth = "v=0\r\n" +
	"o=carrier 2890844526 2890844526 IN IP4 198.51.100.1\r\n" +
	"s=call\r\n" +
	"c=IN IP4 198.51.100.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0 8 101\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n" +
	"a=rtpmap:8 PCMA/8000\r\n" +
	"a=rtpmap:101 telephone-event/8000\r\n"

const offerPCMAOnly = "v=0\r\n" +
	"o=carrier 1 1 IN IP4 198.51.100.1\r\n" +
	"s=call\r\n" +
	"c=IN IP4 198.51.100.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 8\r\n" +
	"a=rtpmap:8 PCMA/8000\r\n"

func TestParseOffer(t *testing.T) {
	codecs := ParseOffer(offerBoth)
	if !codecs.PCMU || !codecs.PCMA {
		t.Errorf("Expected both G.711 variants, got %+v", codecs)
	}

	codecs = ParseOffer(offerPCMAOnly)
	if codecs.PCMU {
		t.Error("PCMU should not be detected")
	}
	if !codecs.PCMA {
		t.Error("Expected PCMA")
	}

	if got := ParseOffer("not an sdp body"); got.PCMU || got.PCMA {
		t.Errorf("Garbage offer should support nothing, got %+v", got)
	}
}

func TestOfferCodecsSupports(t *testing.T) {
	codecs := OfferCodecs{PCMU: true}
	if !codecs.Supports(gateway.CodecPCMU) {
		t.Error("Expected PCMU support")
	}
	if codecs.Supports(gateway.CodecPCMA) {
		t.Error("Did not expect PCMA support")
	}
	if codecs.Supports("G722") {
		t.Error("Unknown codec names are never supported")
	}
}

func TestBuildAnswerRoundTrip(t *testing.T) {
	answer, err := BuildAnswer("203.0.113.9", 40002, gateway.CodecPCMU)
	if err != nil {
		t.Fatalf("BuildAnswer failed: %v", err)
	}
	if !strings.Contains(answer, "m=audio 40002 RTP/AVP 0") {
		t.Errorf("Expected PCMU media line, got:\n%s", answer)
	}
	if !strings.Contains(answer, "c=IN IP4 203.0.113.9") {
		t.Errorf("Expected connection address, got:\n%s", answer)
	}
	if !strings.Contains(answer, "a=sendrecv") {
		t.Error("Expected sendrecv attribute")
	}

	// The answer must be parseable by our own offer logic.
	codecs := ParseOffer(answer)
	if !codecs.PCMU || codecs.PCMA {
		t.Errorf("Round-trip codec detection failed: %+v", codecs)
	}
}

func TestBuildAnswerPCMA(t *testing.T) {
	answer, err := BuildAnswer("203.0.113.9", 40004, gateway.CodecPCMA)
	if err != nil {
		t.Fatalf("BuildAnswer failed: %v", err)
	}
	if !strings.Contains(answer, "m=audio 40004 RTP/AVP 8") {
		t.Errorf("Expected PCMA media line, got:\n%s", answer)
	}
	codecs := ParseOffer(answer)
	if !codecs.PCMA || codecs.PCMU {
		t.Errorf("Round-trip codec detection failed: %+v", codecs)
	}
}

func TestBuildAnswerUnknownCodec(t *testing.T) {
	if _, err := BuildAnswer("203.0.113.9", 40000, "G729"); err == nil {
		t.Error("Expected error for unsupported codec")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	bad := cfg
	bad.Port = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for port 0")
	}

	bad = cfg
	bad.MaxCallDuration = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero max duration")
	}
}
