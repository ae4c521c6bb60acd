package gateway

import (
	"testing"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/codec"
	"github.com/crosstalk-ai/crosstalk/pkg/rtpio"
)

func startedRTP(t *testing.T, cfg Config) *RTP {
	t.Helper()
	g := NewRTP()
	if err := g.Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := g.OnCallStarted("call-r", Metadata{}); err != nil {
		t.Fatalf("OnCallStarted failed: %v", err)
	}
	t.Cleanup(func() { g.Cleanup() })
	return g
}

// ulawFrame builds one 20 ms G.711 μ-law payload (160 bytes) from a tone.
func ulawFrame(t *testing.T) []byte {
	t.Helper()
	gen := audioio.NewToneGenerator(audioio.TelephonyFormat(), 440, 0.5)
	chunk := gen.Next(20 * time.Millisecond)
	payload, err := codec.PCM16ToULaw(chunk.Bytes())
	if err != nil {
		t.Fatalf("PCM16ToULaw failed: %v", err)
	}
	if len(payload) != 160 {
		t.Fatalf("Expected 160-byte frame, got %d", len(payload))
	}
	return payload
}

func TestRTPIngestUpsamples(t *testing.T) {
	g := startedRTP(t, DefaultConfig())

	payload := ulawFrame(t)
	for i := 0; i < 5; i++ {
		pkt, err := rtpio.Encode(payload, uint16(100+i), uint32(8000+i*160), 0xdeadbeef, rtpio.PayloadTypePCMU, i == 0)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if err := g.OnAudioReceived("call-r", pkt); err != nil {
			t.Fatalf("OnAudioReceived failed: %v", err)
		}
	}

	q := g.AudioQueue("call-r")
	if q.Len() != 5 {
		t.Fatalf("Expected 5 queued chunks, got %d", q.Len())
	}
	chunk, ok := q.TryPop()
	if !ok {
		t.Fatal("Expected a chunk")
	}
	// 160 wire samples at 8 kHz become 320 pipeline samples at 16 kHz.
	if len(chunk.Samples) != 320 {
		t.Errorf("Expected 320 samples after upsampling, got %d", len(chunk.Samples))
	}
	if chunk.SampleRate != 16000 {
		t.Errorf("Expected 16 kHz chunks, got %d", chunk.SampleRate)
	}

	st, _ := g.Stats("call-r")
	if st.ValidationErrors != 0 {
		t.Errorf("Expected zero validation errors, got %d", st.ValidationErrors)
	}
	if st.TotalChunks != 5 {
		t.Errorf("Expected 5 ingested chunks, got %d", st.TotalChunks)
	}
}

func TestRTPIngestALaw(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = CodecPCMA
	g := startedRTP(t, cfg)

	if g.PayloadType() != rtpio.PayloadTypePCMA {
		t.Errorf("Expected payload type 8, got %d", g.PayloadType())
	}

	gen := audioio.NewToneGenerator(audioio.TelephonyFormat(), 300, 0.4)
	chunk := gen.Next(20 * time.Millisecond)
	payload, err := codec.PCM16ToALaw(chunk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	pkt, err := rtpio.Encode(payload, 1, 160, 0x42, rtpio.PayloadTypePCMA, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.OnAudioReceived("call-r", pkt); err != nil {
		t.Fatalf("OnAudioReceived failed: %v", err)
	}
	if got := g.AudioQueue("call-r").Len(); got != 1 {
		t.Errorf("Expected 1 queued chunk, got %d", got)
	}
}

func TestRTPMalformedPacketsCounted(t *testing.T) {
	g := startedRTP(t, DefaultConfig())

	// Too short to hold an RTP header.
	if err := g.OnAudioReceived("call-r", []byte{0x80, 0x00, 0x01}); err == nil {
		t.Error("Expected error for truncated packet")
	}
	// Wrong RTP version.
	bad := make([]byte, 20)
	bad[0] = 0x40
	g.OnAudioReceived("call-r", bad)

	st, _ := g.Stats("call-r")
	if st.ValidationErrors != 2 {
		t.Errorf("Expected 2 validation errors, got %d", st.ValidationErrors)
	}
	if st.TotalChunks != 0 {
		t.Errorf("Malformed packets must not produce chunks, got %d", st.TotalChunks)
	}
}

func TestRTPUnexpectedPayloadTypeDropped(t *testing.T) {
	g := startedRTP(t, DefaultConfig())

	pkt, err := rtpio.Encode(make([]byte, 160), 1, 160, 0x42, 96, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.OnAudioReceived("call-r", pkt); err != nil {
		t.Fatalf("Unexpected payload type should drop, not fail: %v", err)
	}

	st, _ := g.Stats("call-r")
	if st.ValidationErrors != 1 {
		t.Errorf("Expected 1 validation error, got %d", st.ValidationErrors)
	}
	if g.AudioQueue("call-r").Len() != 0 {
		t.Error("Expected nothing queued for unknown payload type")
	}
}
